// Copyright 2023 The chert authors
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package aggr

import (
	"github.com/chertdb/chert/fields"
)

// Optimize applies local, semantics-preserving rewrites to the
// pipeline until none fire: the two built-in pushdown rules
// (match pushdown and sample pushdown), each stage's own rewrite
// hook, and finally each stage's local simplification. It runs
// once per pipeline compilation and keeps no state between runs.
func (p *Pipeline) Optimize() {
	for i := 0; i < len(p.stages); {
		i = p.optimizeAt(i)
	}
	out := make([]Stage, 0, len(p.stages))
	for _, s := range p.stages {
		if s = s.Optimize(); s != nil {
			out = append(out, s)
		}
	}
	p.stages = out
}

// optimizeAt attempts the built-in rewrites between position pos
// and its successor, then defers to the stage's own hook. It
// returns the next position to examine: one position earlier
// (clamped to the start) after a rewrite fires, since the new
// adjacency may itself be rewritable.
func (p *Pipeline) optimizeAt(pos int) int {
	if pos < 0 || pos >= len(p.stages) {
		panic("aggr: optimizeAt position out of range")
	}
	if pos+1 < len(p.stages) && (p.pushMatchBefore(pos) || p.pushSampleBefore(pos)) {
		if pos == 0 {
			return 0
		}
		return pos - 1
	}
	if rw, ok := p.stages[pos].(stageRewriter); ok {
		return rw.optimizeAt(p, pos)
	}
	return pos + 1
}

// pushMatchBefore hoists the downstream $match (or its independent
// part) before the stage at pos when the stage permits it. A match
// containing a text predicate is never moved: it must remain the
// pipeline's first stage. A grouping stage with exactly one group
// key additionally refuses the swap when the match tests existence
// of _id, because every document has _id after such a group,
// including those whose group key was missing before it.
func (p *Pipeline) pushMatchBefore(pos int) bool {
	s := p.stages[pos]
	next, ok := p.stages[pos+1].(*MatchStage)
	if !ok || !s.Constraints().CanSwapWithMatch || next.IsTextQuery() {
		return false
	}
	if g, isGroup := s.(*GroupStage); isGroup && !groupMatchSwapVerified(next, g) {
		return false
	}
	indep, dep := splitMatchByModifiedPaths(next, s.ModifiedPaths())
	if indep == nil {
		return false
	}
	// The original match is deleted; the independent part takes
	// this stage's former position, and the dependent remainder
	// (if any) lands immediately after this stage.
	repl := make([]Stage, 0, 3)
	repl = append(repl, indep, s)
	if dep != nil {
		repl = append(repl, dep)
	}
	p.stages = append(p.stages[:pos], append(repl, p.stages[pos+2:]...)...)
	return true
}

// pushSampleBefore swaps the stage at pos with an immediately
// following $sample when the stage permits it.
func (p *Pipeline) pushSampleBefore(pos int) bool {
	s := p.stages[pos]
	next, ok := p.stages[pos+1].(*SampleStage)
	if !ok || !s.Constraints().CanSwapWithSkippingOrLimiting {
		return false
	}
	p.stages[pos], p.stages[pos+1] = next, s
	return true
}

// splitMatchByModifiedPaths splits m into the part that can move
// before a stage with the given ModifiedPaths descriptor and the
// part that must remain after it. Either half may be nil; they are
// never both nil. Swap legality consults the descriptor's Paths
// and Renames sets directly: a predicate moves when its tested
// fields do not overlap anything the stage writes, or when they
// can be rewritten through a rename to the stage's input names.
func splitMatchByModifiedPaths(m *MatchStage, mod ModifiedPaths) (indep, dep *MatchStage) {
	switch mod.Kind {
	case ModNotSupported, ModAllPaths:
		// No finite description of the stage's effect exists,
		// so no predicate can be proven independent.
		return nil, m
	}
	touched := fields.SetOf(mod.Paths.Slice()...)
	for _, to := range sortedKeys(mod.Renames) {
		if dest, err := fields.Parse(to); err == nil {
			touched.Add(dest)
		}
	}
	return m.splitByModified(touched, mod.Renames)
}

// groupMatchSwapVerified reports whether the group/match swap is
// semantically sound. It is always sound for multi-key groups; a
// single-key group materializes _id for every document, so a match
// testing existence of _id must not be hoisted.
func groupMatchSwapVerified(m *MatchStage, g *GroupStage) bool {
	if g.IDFieldCount() != 1 {
		return true
	}
	return !m.HasExistencePredicateOn(fields.New("_id"))
}

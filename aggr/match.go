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
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/fields"
	"github.com/chertdb/chert/qerr"
)

// predicate is one conjunct of a $match filter: either a field
// predicate like {a: {$gt: 3}} (op == "") or a top-level operator
// conjunct like {$or: [...]} (path is zero).
type predicate struct {
	path  fields.Path
	op    string
	value interface{}
}

// MatchStage filters documents. Its filter is modeled as a
// conjunction of predicates, which is what the pushdown rewrite
// splits and reorders.
type MatchStage struct {
	preds []predicate
}

func parseMatch(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, qerr.Parsef("the %s filter must be an expression in an object", name)
	}
	preds, err := parsePredicates(doc)
	if err != nil {
		return nil, err
	}
	return []Stage{&MatchStage{preds: preds}}, nil
}

// parsePredicates flattens a filter document into conjuncts.
// A top-level $and contributes the conjuncts of each of its
// branches; other operators remain single opaque conjuncts.
func parsePredicates(doc bson.D) ([]predicate, error) {
	var out []predicate
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			switch e.Key {
			case "$and":
				arr, ok := e.Value.(bson.A)
				if !ok {
					return nil, qerr.Parsef("$and argument must be an array")
				}
				for _, branch := range arr {
					sub, ok := branch.(bson.D)
					if !ok {
						return nil, qerr.Parsef("$and elements must be objects")
					}
					ps, err := parsePredicates(sub)
					if err != nil {
						return nil, err
					}
					out = append(out, ps...)
				}
			case "$or", "$nor", "$expr", "$text", "$comment", "$where":
				out = append(out, predicate{op: e.Key, value: e.Value})
			default:
				return nil, qerr.Parsef("unknown top-level operator: %s", e.Key)
			}
			continue
		}
		p, err := fields.Parse(e.Key)
		if err != nil {
			return nil, qerr.Parsef("bad filter field %q: %v", e.Key, err)
		}
		out = append(out, predicate{path: p, value: e.Value})
	}
	return out, nil
}

func (m *MatchStage) Name() string { return "$match" }

func (m *MatchStage) Serialize() bson.D {
	return bson.D{{Key: "$match", Value: m.filterDoc()}}
}

func (m *MatchStage) filterDoc() bson.D {
	doc := bson.D{}
	for _, pr := range m.preds {
		if pr.op != "" {
			doc = append(doc, bson.E{Key: pr.op, Value: pr.value})
		} else {
			doc = append(doc, bson.E{Key: pr.path.String(), Value: pr.value})
		}
	}
	return doc
}

func (m *MatchStage) Constraints() Constraints { return Constraints{} }

// ModifiedPaths: a filter never changes field names.
func (m *MatchStage) ModifiedPaths() ModifiedPaths {
	return FiniteSet(fields.PathSet{}, nil)
}

func (m *MatchStage) Dependencies() []fields.Path {
	var set fields.PathSet
	for _, pr := range m.preds {
		collectPredicateRefs(pr, &set)
	}
	return set.Slice()
}

func (m *MatchStage) OutputSorts(p *Pipeline, pos int) Sorts {
	return propagatedSorts(p, pos, m)
}

func (m *MatchStage) Optimize() Stage { return m }

// optimizeAt coalesces an immediately following $match into this
// one, then re-examines the same position in case another $match
// follows.
func (m *MatchStage) optimizeAt(p *Pipeline, pos int) int {
	p.mustHold(pos, m)
	if pos+1 < len(p.stages) {
		if next, ok := p.stages[pos+1].(*MatchStage); ok && !next.IsTextQuery() {
			m.preds = append(m.preds, next.preds...)
			p.stages = append(p.stages[:pos+1], p.stages[pos+2:]...)
			return pos
		}
	}
	return pos + 1
}

// IsTextQuery returns whether the filter contains a text-search
// predicate. Text predicates pin the match to the first pipeline
// position; the optimizer never moves them.
func (m *MatchStage) IsTextQuery() bool {
	for _, pr := range m.preds {
		if pr.op == "$text" {
			return true
		}
	}
	return false
}

// HasExistencePredicateOn returns whether the filter tests
// existence of exactly p.
func (m *MatchStage) HasExistencePredicateOn(p fields.Path) bool {
	for _, pr := range m.preds {
		if pr.op != "" || !pr.path.Equal(p) {
			continue
		}
		if ops, ok := pr.value.(bson.D); ok {
			if _, ok := lookup(ops, "$exists"); ok {
				return true
			}
		}
	}
	return false
}

// splitByModified splits the filter into the conjunction that can
// move before a stage touching the given paths (with renames
// applied, destination to source) and the remainder that cannot.
// Operator conjuncts never move. Either result may be nil.
func (m *MatchStage) splitByModified(touched fields.PathSet, renames map[string]string) (indep, dep *MatchStage) {
	var moved, kept []predicate
	for _, pr := range m.preds {
		if pr.op != "" {
			kept = append(kept, pr)
			continue
		}
		np, ok := relocated(pr.path, touched, renames)
		if !ok {
			kept = append(kept, pr)
			continue
		}
		moved = append(moved, predicate{path: np, value: pr.value})
	}
	if len(moved) > 0 {
		indep = &MatchStage{preds: moved}
	}
	if len(kept) > 0 {
		dep = &MatchStage{preds: kept}
	}
	return indep, dep
}

// relocated maps a predicate path from the stage's output namespace
// to its input namespace. A path prefixed by a rename destination is
// rewritten through the rename; a path overlapping anything else the
// stage touches cannot move; any other path moves unchanged.
func relocated(p fields.Path, touched fields.PathSet, renames map[string]string) (fields.Path, bool) {
	for _, to := range sortedKeys(renames) {
		dest, err := fields.Parse(to)
		if err != nil || !dest.IsPrefixOf(p) {
			continue
		}
		src, err := fields.Parse(renames[to])
		if err != nil {
			return fields.Path{}, false
		}
		return src.Concat(p.Suffix(dest.Len())), true
	}
	if touched.ContainsOverlap(p) {
		return fields.Path{}, false
	}
	return p, true
}

// collectPredicateRefs records the field paths a conjunct reads.
func collectPredicateRefs(pr predicate, set *fields.PathSet) {
	if pr.op == "" {
		set.Add(pr.path)
		return
	}
	switch pr.op {
	case "$or", "$nor":
		if arr, ok := pr.value.(bson.A); ok {
			for _, branch := range arr {
				if sub, ok := branch.(bson.D); ok {
					if ps, err := parsePredicates(sub); err == nil {
						for _, sp := range ps {
							collectPredicateRefs(sp, set)
						}
					}
				}
			}
		}
	case "$expr":
		collectExprRefs(pr.value, set)
	}
}

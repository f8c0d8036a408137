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
	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/fields"
)

// Constraints are the reordering permissions a stage grants
// the optimizer's built-in pushdown rules.
type Constraints struct {
	// CanSwapWithMatch permits a downstream $match (or the
	// independent part of one) to be hoisted before this stage.
	CanSwapWithMatch bool
	// CanSwapWithSkippingOrLimiting permits this stage to swap
	// with a downstream skipping, limiting, or sampling stage.
	CanSwapWithSkippingOrLimiting bool
}

// Stage is one step of a pipeline. Stages are created by a
// Registry and owned exclusively by the Pipeline that holds
// them; rewrites may delete, insert, or reorder stages, but
// never mutate another stage's identity.
type Stage interface {
	// Name returns the stage name, like "$match".
	Name() string
	// Serialize returns the one-field {name: args} document
	// mirroring the specification the stage was parsed from.
	Serialize() bson.D
	// Constraints reports the stage's reordering permissions.
	Constraints() Constraints
	// ModifiedPaths describes the stage's effect on field names.
	ModifiedPaths() ModifiedPaths
	// Dependencies reports the field paths the stage reads.
	Dependencies() []fields.Path
	// OutputSorts reports the sort orders the pipeline guarantees
	// immediately after this stage, given that the stage sits at
	// position pos of p.
	OutputSorts(p *Pipeline, pos int) Sorts
	// Optimize attempts stage-local simplification and returns
	// the stage to keep in this position; returning nil removes
	// the stage from the pipeline.
	Optimize() Stage
}

// stageRewriter is the optional per-stage rewrite hook consulted
// by Pipeline.optimizeAt after the built-in pushdown rules. It
// returns the next position to examine.
type stageRewriter interface {
	optimizeAt(p *Pipeline, pos int) int
}

// propagatedSorts implements the generic sort-order propagation:
// the sorts guaranteed after stage s are the previous stage's
// output sorts pushed through s's ModifiedPaths descriptor.
// Whenever the descriptor admits no finite description, the
// result is empty: under-claiming a preserved order is safe,
// over-claiming is not.
func propagatedSorts(p *Pipeline, pos int, s Stage) Sorts {
	p.mustHold(pos, s)
	if pos == 0 {
		// No incoming order exists before the first stage.
		return Sorts{}
	}
	mod := s.ModifiedPaths()
	if mod.Kind != ModFiniteSet && mod.Kind != ModAllExcept {
		return Sorts{}
	}
	prev := p.stages[pos-1].OutputSorts(p, pos-1)

	// Map every field path the previous sorts reference to its
	// set of new names. WhatHappenedTo already encodes the
	// keep/drop classification for both descriptor kinds:
	// a finite set implicitly preserves unmentioned paths, an
	// all-except descriptor drops them.
	oldToNew := make(map[string][]fields.Path)
	for _, pat := range prev.Patterns() {
		for _, key := range pat {
			name := key.Path.String()
			if _, ok := oldToNew[name]; !ok {
				oldToNew[name] = mod.WhatHappenedTo(key.Path)
			}
		}
	}
	return prev.Rename(oldToNew)
}

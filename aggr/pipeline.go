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
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Pipeline is an ordered sequence of stages. It exclusively owns
// its stage nodes: a stage removed by a rewrite is simply dropped
// and never referenced again.
//
// A Pipeline is built once per query compilation and is not safe
// for concurrent mutation.
type Pipeline struct {
	stages []Stage
}

// Parse parses a pipeline: a list of one-field stage
// specification objects.
func Parse(reg *Registry, specs []bson.D) (*Pipeline, error) {
	p := &Pipeline{}
	for i, spec := range specs {
		ss, err := reg.ParseStage(spec)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %d: %w", i, err)
		}
		p.stages = append(p.stages, ss...)
	}
	return p, nil
}

// Len returns the number of stages in the pipeline.
func (p *Pipeline) Len() int { return len(p.stages) }

// Stages returns the pipeline's stages in order.
// The caller must not modify the result.
func (p *Pipeline) Stages() []Stage { return p.stages }

// OutputSorts reports the sort orders guaranteed on the
// pipeline's final output.
func (p *Pipeline) OutputSorts() Sorts {
	if len(p.stages) == 0 {
		return Sorts{}
	}
	last := len(p.stages) - 1
	return p.stages[last].OutputSorts(p, last)
}

// Serialize returns the pipeline in its input shape: one
// {name: args} document per stage.
func (p *Pipeline) Serialize() []bson.D {
	out := make([]bson.D, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, s.Serialize())
	}
	return out
}

// Explain returns the explain form of the pipeline: each stage's
// serialization plus a _modPaths field describing the stage's
// effect on field names.
func (p *Pipeline) Explain() []bson.D {
	out := make([]bson.D, 0, len(p.stages))
	for _, s := range p.stages {
		doc := s.Serialize()
		doc = append(doc, bson.E{Key: "_modPaths", Value: s.ModifiedPaths().Serialize()})
		out = append(out, doc)
	}
	return out
}

// mustHold panics unless s sits at position pos of p. The rewrite
// hooks are always invoked with the stage's own position; anything
// else is a bug in the optimizer, not a user-facing condition.
func (p *Pipeline) mustHold(pos int, s Stage) {
	if pos < 0 || pos >= len(p.stages) || p.stages[pos] != s {
		panic(fmt.Sprintf("aggr: stage %s not at pipeline position %d", s.Name(), pos))
	}
}

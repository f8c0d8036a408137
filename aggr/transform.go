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
	"github.com/chertdb/chert/qerr"
)

// Transformer is the parsed body of a single-document
// transformation stage: it maps each input document to exactly
// one output document and can describe its effect on field names.
type Transformer interface {
	// Name returns the stage name the transformation serializes under.
	Name() string
	// SerializeSpec returns the stage argument object.
	SerializeSpec() interface{}
	// ModifiedPaths describes the transformation's effect on
	// field names.
	ModifiedPaths() ModifiedPaths
	// Dependencies reports the field paths the transformation reads.
	Dependencies() []fields.Path
}

// TransformStage wraps a Transformer as a pipeline stage.
// Because the transformation is per-document, it commutes with
// skipping, limiting, and sampling.
type TransformStage struct {
	t Transformer
}

// NewTransformStage wraps t as a pipeline stage.
func NewTransformStage(t Transformer) *TransformStage {
	return &TransformStage{t: t}
}

func (s *TransformStage) Name() string { return s.t.Name() }

func (s *TransformStage) Serialize() bson.D {
	return bson.D{{Key: s.t.Name(), Value: s.t.SerializeSpec()}}
}

func (s *TransformStage) Constraints() Constraints {
	return Constraints{
		CanSwapWithMatch:              true,
		CanSwapWithSkippingOrLimiting: true,
	}
}

func (s *TransformStage) ModifiedPaths() ModifiedPaths {
	return s.t.ModifiedPaths()
}

func (s *TransformStage) Dependencies() []fields.Path {
	return s.t.Dependencies()
}

func (s *TransformStage) OutputSorts(p *Pipeline, pos int) Sorts {
	return propagatedSorts(p, pos, s)
}

func (s *TransformStage) Optimize() Stage { return s }

// optimizeAt swaps the stage forward past an immediately following
// $skip: skipping commutes with a per-document field transform.
func (s *TransformStage) optimizeAt(p *Pipeline, pos int) int {
	p.mustHold(pos, s)
	if pos+1 < len(p.stages) {
		if _, ok := p.stages[pos+1].(*SkipStage); ok {
			p.stages[pos], p.stages[pos+1] = p.stages[pos+1], p.stages[pos]
			if pos == 0 {
				return 0
			}
			return pos - 1
		}
	}
	return pos + 1
}

// addFieldsTransform implements $addFields / $set: it computes the
// given paths and preserves everything else.
type addFieldsTransform struct {
	name     string
	spec     bson.D
	computed fields.PathSet
	renames  map[string]string
}

func parseAddFields(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, qerr.Parsef("%s requires a non-empty object of field specifications", name)
	}
	t := &addFieldsTransform{name: name, spec: doc, renames: make(map[string]string)}
	for _, e := range doc {
		dest, err := fields.Parse(e.Key)
		if err != nil {
			return nil, qerr.Parsef("bad field name %q: %v", e.Key, err)
		}
		// A computed field whose expression is a plain reference
		// and whose destination is not dotted is a rename; dotted
		// destinations broadcast and stay in the modified set.
		if src, isRef := fieldRef(e.Value); isRef && dest.Len() == 1 {
			t.renames[dest.String()] = src.String()
			continue
		}
		t.computed.Add(dest)
	}
	return []Stage{NewTransformStage(t)}, nil
}

func (t *addFieldsTransform) Name() string               { return t.name }
func (t *addFieldsTransform) SerializeSpec() interface{} { return t.spec }

func (t *addFieldsTransform) ModifiedPaths() ModifiedPaths {
	return FiniteSet(t.computed, t.renames)
}

func (t *addFieldsTransform) Dependencies() []fields.Path {
	var set fields.PathSet
	collectExprRefs(t.spec, &set)
	return set.Slice()
}

// projectTransform implements $project in both of its modes.
// An inclusion projection preserves exactly the named paths (plus
// _id unless excluded); an exclusion projection removes exactly
// the named paths and preserves the rest.
type projectTransform struct {
	spec      bson.D
	inclusion bool
	paths     fields.PathSet    // preserved (inclusion) or removed (exclusion)
	renames   map[string]string // inclusion only
}

func parseProject(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, qerr.Parsef("%s requires a non-empty object of field specifications", name)
	}
	t := &projectTransform{spec: doc, renames: make(map[string]string)}

	// Classify the projection: any included or computed field
	// (other than _id) makes it an inclusion.
	sawInclude, sawExclude := false, false
	for _, e := range doc {
		truthy, isBool := projectionFlag(e.Value)
		switch {
		case !isBool || truthy:
			if e.Key != "_id" {
				sawInclude = true
			}
		default:
			if e.Key != "_id" {
				sawExclude = true
			}
		}
	}
	if sawInclude && sawExclude {
		return nil, qerr.Parsef("%s cannot mix inclusion and exclusion of fields", name)
	}
	t.inclusion = sawInclude

	idExcluded := false
	for _, e := range doc {
		dest, err := fields.Parse(e.Key)
		if err != nil {
			return nil, qerr.Parsef("bad field name %q: %v", e.Key, err)
		}
		truthy, isBool := projectionFlag(e.Value)
		if isBool && !truthy {
			if e.Key == "_id" {
				idExcluded = true
			} else {
				t.paths.Add(dest) // exclusion mode
			}
			continue
		}
		if !t.inclusion {
			continue
		}
		if src, isRef := fieldRef(e.Value); isRef && dest.Len() == 1 {
			t.renames[dest.String()] = src.String()
			continue
		}
		t.paths.Add(dest) // preserved or computed
	}
	if t.inclusion && !idExcluded {
		t.paths.Add(fields.New("_id"))
	}
	return []Stage{NewTransformStage(t)}, nil
}

// projectionFlag interprets a projection value as an
// include/exclude flag, if it is one.
func projectionFlag(v interface{}) (truthy, isFlag bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int:
		return t != 0, true
	case int32:
		return t != 0, true
	case int64:
		return t != 0, true
	case float64:
		return t != 0, true
	}
	return false, false
}

func (t *projectTransform) Name() string               { return "$project" }
func (t *projectTransform) SerializeSpec() interface{} { return t.spec }

func (t *projectTransform) ModifiedPaths() ModifiedPaths {
	if t.inclusion {
		return AllExcept(t.paths, t.renames)
	}
	return FiniteSet(t.paths, nil)
}

func (t *projectTransform) Dependencies() []fields.Path {
	var set fields.PathSet
	collectExprRefs(t.spec, &set)
	return set.Slice()
}

// unsetTransform implements $unset: it removes the named paths
// and preserves everything else.
type unsetTransform struct {
	spec  interface{}
	paths fields.PathSet
}

func parseUnset(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	t := &unsetTransform{spec: v}
	add := func(raw interface{}) error {
		s, ok := raw.(string)
		if !ok {
			return qerr.Parsef("%s specification must be a string or an array of strings", name)
		}
		p, err := fields.Parse(s)
		if err != nil {
			return qerr.Parsef("bad field name %q: %v", s, err)
		}
		t.paths.Add(p)
		return nil
	}
	switch raw := v.(type) {
	case bson.A:
		if len(raw) == 0 {
			return nil, qerr.Parsef("%s specification must not be an empty array", name)
		}
		for _, e := range raw {
			if err := add(e); err != nil {
				return nil, err
			}
		}
	default:
		if err := add(raw); err != nil {
			return nil, err
		}
	}
	return []Stage{NewTransformStage(t)}, nil
}

func (t *unsetTransform) Name() string               { return "$unset" }
func (t *unsetTransform) SerializeSpec() interface{} { return t.spec }

func (t *unsetTransform) ModifiedPaths() ModifiedPaths {
	return FiniteSet(t.paths, nil)
}

func (t *unsetTransform) Dependencies() []fields.Path { return nil }

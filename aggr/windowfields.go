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

	"github.com/chertdb/chert/aggr/window"
	"github.com/chertdb/chert/fields"
	"github.com/chertdb/chert/qerr"
)

// SetWindowFieldsStage computes window functions over a partitioned,
// ordered view of the stream and writes each result to an output
// field. Existing fields are untouched, so it is a safe target for
// match pushdown on anything it does not write.
type SetWindowFieldsStage struct {
	partitionBy interface{} // optional, carried opaquely
	sortBy      SortPattern
	sortBySpec  bson.D
	outputs     []windowOutput
}

type windowOutput struct {
	path fields.Path
	expr window.Expression
}

func parseSetWindowFields(name string, v interface{}, ctx *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, qerr.Parsef("%s requires an object as its argument", name)
	}
	s := &SetWindowFieldsStage{}
	var output bson.D
	sawOutput := false
	// sortBy is parsed first regardless of field order: window
	// function parsers may consult it.
	for _, e := range doc {
		switch e.Key {
		case "partitionBy":
			s.partitionBy = e.Value
		case "sortBy":
			spec, ok := e.Value.(bson.D)
			if !ok {
				return nil, qerr.Parsef("'sortBy' must be an object")
			}
			pattern, err := parseSortPattern(spec)
			if err != nil {
				return nil, err
			}
			s.sortBy, s.sortBySpec = pattern, spec
		case "output":
			spec, ok := e.Value.(bson.D)
			if !ok {
				return nil, qerr.Parsef("'output' must be an object")
			}
			output, sawOutput = spec, true
		default:
			return nil, qerr.Parsef("unknown argument to %s: %q", name, e.Key)
		}
	}
	if !sawOutput {
		return nil, qerr.Parsef("%s requires an 'output' field", name)
	}
	s.outputs = make([]windowOutput, 0, len(output))
	for _, out := range output {
		path, err := fields.Parse(out.Key)
		if err != nil {
			return nil, qerr.Parsef("bad output field name %q: %v", out.Key, err)
		}
		fn, ok := out.Value.(bson.D)
		if !ok || len(fn) != 1 {
			return nil, qerr.Parsef("the output field %q must be an object with exactly one window function", out.Key)
		}
		expr, err := ctx.Windows.Parse(fn[0], s.sortBySpec, ctx.Eval)
		if err != nil {
			return nil, err
		}
		s.outputs = append(s.outputs, windowOutput{path: path, expr: expr})
	}
	return []Stage{s}, nil
}

// parseSortPattern parses a {field: 1|-1, ...} specification.
func parseSortPattern(spec bson.D) (SortPattern, error) {
	pattern := make(SortPattern, 0, len(spec))
	for _, e := range spec {
		p, err := fields.Parse(e.Key)
		if err != nil {
			return nil, qerr.Parsef("bad sort key %q: %v", e.Key, err)
		}
		if doc, ok := e.Value.(bson.D); ok {
			if _, isMeta := lookup(doc, "$meta"); isMeta {
				return nil, &qerr.NotImplementedError{What: "sorting by $meta metadata"}
			}
		}
		dir, ok := asInt64(e.Value)
		if !ok || (dir != 1 && dir != -1) {
			return nil, qerr.Parsef("the sort direction for %q must be 1 or -1", e.Key)
		}
		pattern = append(pattern, SortKey{Path: p, Descending: dir == -1})
	}
	return pattern, nil
}

func (s *SetWindowFieldsStage) Name() string { return "$setWindowFields" }

func (s *SetWindowFieldsStage) Serialize() bson.D {
	args := bson.D{}
	if s.partitionBy != nil {
		args = append(args, bson.E{Key: "partitionBy", Value: s.partitionBy})
	}
	if len(s.sortBy) > 0 {
		args = append(args, bson.E{Key: "sortBy", Value: s.sortBy.Serialize()})
	}
	output := bson.D{}
	for _, out := range s.outputs {
		fn := out.expr.Serialize()
		output = append(output, bson.E{Key: out.path.String(), Value: fn})
	}
	args = append(args, bson.E{Key: "output", Value: output})
	return bson.D{{Key: "$setWindowFields", Value: args}}
}

func (s *SetWindowFieldsStage) Constraints() Constraints {
	return Constraints{CanSwapWithMatch: true}
}

// ModifiedPaths: exactly the output fields are written; the rest of
// the document passes through unchanged.
func (s *SetWindowFieldsStage) ModifiedPaths() ModifiedPaths {
	var paths fields.PathSet
	for _, out := range s.outputs {
		paths.Add(out.path)
	}
	return FiniteSet(paths, nil)
}

func (s *SetWindowFieldsStage) Dependencies() []fields.Path {
	var set fields.PathSet
	collectExprRefs(s.partitionBy, &set)
	for _, k := range s.sortBy {
		set.Add(k.Path)
	}
	for _, out := range s.outputs {
		collectExprRefs(out.expr.Serialize(), &set)
	}
	return set.Slice()
}

func (s *SetWindowFieldsStage) OutputSorts(p *Pipeline, pos int) Sorts {
	return propagatedSorts(p, pos, s)
}

func (s *SetWindowFieldsStage) Optimize() Stage { return s }

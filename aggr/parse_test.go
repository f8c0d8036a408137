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
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/qerr"
)

func mustParseStage(t *testing.T, spec bson.D) Stage {
	t.Helper()
	ss, err := NewRegistry(nil).ParseStage(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(ss) != 1 {
		t.Fatalf("expected one stage, got %d", len(ss))
	}
	return ss[0]
}

func TestParseErrors(t *testing.T) {
	bad := []bson.D{
		{{Key: "$match", Value: "not an object"}},
		{{Key: "$match", Value: bson.D{{Key: "$flimflam", Value: 1}}}},
		{{Key: "$match", Value: bson.D{{Key: "$and", Value: "not an array"}}}},
		{{Key: "$group", Value: bson.D{{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}}}}}, // no _id
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$a"}, {Key: "total", Value: "$b"}}}}, // not an accumulator
		{{Key: "$sample", Value: bson.D{}}},                            // no size
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: -1}}}},    // negative
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 2.5}}}},   // non-integral
		{{Key: "$skip", Value: -1}},
		{{Key: "$limit", Value: 0}},
		{{Key: "$sort", Value: bson.D{}}},
		{{Key: "$sort", Value: bson.D{{Key: "a", Value: 2}}}},
		{{Key: "$project", Value: bson.D{}}},
		{{Key: "$project", Value: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 0}}}}, // mixed
		{{Key: "$addFields", Value: bson.D{}}},
		{{Key: "$unset", Value: 7}},
		{{Key: "$unset", Value: bson.A{}}},
		{{Key: "$unset", Value: bson.A{"a", 7}}},
		{{Key: "$setWindowFields", Value: bson.D{{Key: "sortBy", Value: bson.D{{Key: "t", Value: 1}}}}}}, // no output
		{{Key: "$setWindowFields", Value: bson.D{{Key: "bogus", Value: 1}}}},
		{{Key: "$setWindowFields", Value: bson.D{
			{Key: "output", Value: bson.D{{Key: "t", Value: "$sum"}}},
		}}},
	}
	reg := NewRegistry(nil)
	for _, spec := range bad {
		if _, err := reg.ParseStage(spec); err == nil {
			t.Errorf("expected error for %v", spec)
		}
	}
}

// A $meta sort specification is structurally valid but this engine
// does not model metadata sort keys: it must be reported as
// unimplemented, not as a malformed direction.
func TestMetaSortNotImplemented(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.ParseStage(bson.D{{Key: "$sort", Value: bson.D{
		{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}},
	}}})
	var ne *qerr.NotImplementedError
	if !errors.As(err, &ne) {
		t.Fatalf("expected a not-implemented error, got %v", err)
	}
}

func TestProjectModifiedPaths(t *testing.T) {
	// inclusion: preserves exactly the named fields plus _id
	s := mustParseStage(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "a", Value: 1},
		{Key: "b.c", Value: true},
	}}})
	mod := s.ModifiedPaths()
	if mod.Kind != ModAllExcept {
		t.Fatalf("Kind = %v", mod.Kind)
	}
	if !mod.Paths.Equal(pathset("a", "b.c", "_id")) {
		t.Errorf("Paths = %v", mod.Paths.Slice())
	}

	// inclusion with _id excluded and a rename
	s = mustParseStage(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "_id", Value: 0},
		{Key: "x", Value: "$a"},
	}}})
	mod = s.ModifiedPaths()
	if mod.Kind != ModAllExcept {
		t.Fatalf("Kind = %v", mod.Kind)
	}
	if mod.Paths.Len() != 0 {
		t.Errorf("Paths = %v", mod.Paths.Slice())
	}
	if !reflect.DeepEqual(mod.Renames, map[string]string{"x": "a"}) {
		t.Errorf("Renames = %v", mod.Renames)
	}

	// exclusion: modifies exactly the named fields
	s = mustParseStage(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "secret", Value: 0},
	}}})
	mod = s.ModifiedPaths()
	if mod.Kind != ModFiniteSet {
		t.Fatalf("Kind = %v", mod.Kind)
	}
	if !mod.Paths.Equal(pathset("secret")) {
		t.Errorf("Paths = %v", mod.Paths.Slice())
	}

	// flags arrive in whatever numeric type the decoder produced
	for _, zero := range []interface{}{0, int32(0), int64(0), float64(0), false} {
		s = mustParseStage(t, bson.D{{Key: "$project", Value: bson.D{
			{Key: "secret", Value: zero},
		}}})
		if got := s.ModifiedPaths().Kind; got != ModFiniteSet {
			t.Errorf("%T flag: Kind = %v, want finiteSet", zero, got)
		}
	}
	for _, one := range []interface{}{1, int32(1), int64(1), float64(1), true} {
		s = mustParseStage(t, bson.D{{Key: "$project", Value: bson.D{
			{Key: "a", Value: one},
		}}})
		if got := s.ModifiedPaths().Kind; got != ModAllExcept {
			t.Errorf("%T flag: Kind = %v, want allExcept", one, got)
		}
	}
}

func TestAddFieldsModifiedPaths(t *testing.T) {
	s := mustParseStage(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "x", Value: "$a"},                                         // rename
		{Key: "y.z", Value: "$b"},                                       // dotted destination: computed, not a rename
		{Key: "t", Value: bson.D{{Key: "$add", Value: bson.A{"$a", 1}}}}, // computed
	}}})
	mod := s.ModifiedPaths()
	if mod.Kind != ModFiniteSet {
		t.Fatalf("Kind = %v", mod.Kind)
	}
	if !mod.Paths.Equal(pathset("y.z", "t")) {
		t.Errorf("Paths = %v", mod.Paths.Slice())
	}
	if !reflect.DeepEqual(mod.Renames, map[string]string{"x": "a"}) {
		t.Errorf("Renames = %v", mod.Renames)
	}
}

func TestUnsetForms(t *testing.T) {
	s := mustParseStage(t, bson.D{{Key: "$unset", Value: "a.b"}})
	if !s.ModifiedPaths().Paths.Equal(pathset("a.b")) {
		t.Errorf("string form: %v", s.ModifiedPaths().Paths.Slice())
	}
	s = mustParseStage(t, bson.D{{Key: "$unset", Value: bson.A{"a", "b.c"}}})
	if !s.ModifiedPaths().Paths.Equal(pathset("a", "b.c")) {
		t.Errorf("array form: %v", s.ModifiedPaths().Paths.Slice())
	}
}

func TestGroupIDFields(t *testing.T) {
	// single expression key
	s := mustParseStage(t, bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$x"}}}})
	g := s.(*GroupStage)
	if g.IDFieldCount() != 1 {
		t.Errorf("IDFieldCount = %d", g.IDFieldCount())
	}
	mod := g.ModifiedPaths()
	if mod.Kind != ModAllExcept || !reflect.DeepEqual(mod.Renames, map[string]string{"_id": "x"}) {
		t.Errorf("descriptor = %+v", mod)
	}

	// document-valued key
	s = mustParseStage(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: bson.D{{Key: "u", Value: "$user"}, {Key: "d", Value: "$day"}}},
	}}})
	g = s.(*GroupStage)
	if g.IDFieldCount() != 2 {
		t.Errorf("IDFieldCount = %d", g.IDFieldCount())
	}
	mod = g.ModifiedPaths()
	want := map[string]string{"_id.u": "user", "_id.d": "day"}
	if !reflect.DeepEqual(mod.Renames, want) {
		t.Errorf("Renames = %v, want %v", mod.Renames, want)
	}

	// operator-valued key is one field, not a document literal
	s = mustParseStage(t, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: bson.D{{Key: "$concat", Value: bson.A{"$a", "$b"}}}},
	}}})
	if got := s.(*GroupStage).IDFieldCount(); got != 1 {
		t.Errorf("IDFieldCount = %d", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	specs := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "a", Value: 1}, {Key: "$or", Value: bson.A{bson.D{{Key: "b", Value: 2}}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$x"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "n", Value: -1}}}},
		{{Key: "$project", Value: bson.D{{Key: "n", Value: 1}}}},
		{{Key: "$unset", Value: bson.A{"n"}}},
		{{Key: "$setWindowFields", Value: bson.D{
			{Key: "partitionBy", Value: "$region"},
			{Key: "sortBy", Value: bson.D{{Key: "t", Value: 1}}},
			{Key: "output", Value: bson.D{
				{Key: "total", Value: bson.D{{Key: "$sum", Value: bson.D{
					{Key: "input", Value: "$q"},
					{Key: "documents", Value: bson.A{"unbounded", "current"}},
				}}}},
			}},
		}}},
		{{Key: "$skip", Value: 3}},
		{{Key: "$limit", Value: 7}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 5}}}},
	}
	p := mustParsePipeline(t, specs)
	got, want := extjson(t, p.Serialize()), extjson(t, specs)
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

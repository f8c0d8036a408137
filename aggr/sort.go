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

// SortStage orders documents by a sort pattern.
type SortStage struct {
	pattern SortPattern
}

func parseSort(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, qerr.Parsef("the %s key specification must be a non-empty object", name)
	}
	pattern, err := parseSortPattern(doc)
	if err != nil {
		return nil, err
	}
	return []Stage{&SortStage{pattern: pattern}}, nil
}

func (s *SortStage) Name() string { return "$sort" }

// Pattern returns the stage's sort pattern.
func (s *SortStage) Pattern() SortPattern { return s.pattern }

func (s *SortStage) Serialize() bson.D {
	return bson.D{{Key: "$sort", Value: s.pattern.Serialize()}}
}

func (s *SortStage) Constraints() Constraints {
	return Constraints{CanSwapWithMatch: true}
}

// ModifiedPaths: sorting changes no field names.
func (s *SortStage) ModifiedPaths() ModifiedPaths {
	return FiniteSet(fields.PathSet{}, nil)
}

func (s *SortStage) Dependencies() []fields.Path {
	var set fields.PathSet
	for _, k := range s.pattern {
		set.Add(k.Path)
	}
	return set.Slice()
}

// OutputSorts: the stage guarantees its own pattern and every
// non-empty prefix of it.
func (s *SortStage) OutputSorts(p *Pipeline, pos int) Sorts {
	p.mustHold(pos, s)
	var out Sorts
	for n := 1; n <= len(s.pattern); n++ {
		out.Add(s.pattern[:n:n])
	}
	return out
}

func (s *SortStage) Optimize() Stage { return s }

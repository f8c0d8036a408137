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

// SkipStage drops the first N documents.
type SkipStage struct {
	n int64
}

// LimitStage passes at most the first N documents.
type LimitStage struct {
	n int64
}

func parseSkip(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	n, ok := asInt64(v)
	if !ok || n < 0 {
		return nil, qerr.Parsef("the %s argument must be a non-negative integer", name)
	}
	return []Stage{&SkipStage{n: n}}, nil
}

func parseLimit(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	n, ok := asInt64(v)
	if !ok || n <= 0 {
		return nil, qerr.Parsef("the %s argument must be a positive integer", name)
	}
	return []Stage{&LimitStage{n: n}}, nil
}

func (s *SkipStage) Name() string { return "$skip" }
func (s *SkipStage) N() int64     { return s.n }

func (s *SkipStage) Serialize() bson.D {
	return bson.D{{Key: "$skip", Value: s.n}}
}

func (s *SkipStage) Constraints() Constraints { return Constraints{} }

func (s *SkipStage) ModifiedPaths() ModifiedPaths {
	return FiniteSet(fields.PathSet{}, nil)
}

func (s *SkipStage) Dependencies() []fields.Path { return nil }

func (s *SkipStage) OutputSorts(p *Pipeline, pos int) Sorts {
	return propagatedSorts(p, pos, s)
}

func (s *SkipStage) Optimize() Stage { return s }

// optimizeAt folds an immediately following $skip into this one.
func (s *SkipStage) optimizeAt(p *Pipeline, pos int) int {
	p.mustHold(pos, s)
	if pos+1 < len(p.stages) {
		if next, ok := p.stages[pos+1].(*SkipStage); ok {
			s.n += next.n
			p.stages = append(p.stages[:pos+1], p.stages[pos+2:]...)
			return pos
		}
	}
	return pos + 1
}

func (l *LimitStage) Name() string { return "$limit" }
func (l *LimitStage) N() int64     { return l.n }

func (l *LimitStage) Serialize() bson.D {
	return bson.D{{Key: "$limit", Value: l.n}}
}

func (l *LimitStage) Constraints() Constraints { return Constraints{} }

func (l *LimitStage) ModifiedPaths() ModifiedPaths {
	return FiniteSet(fields.PathSet{}, nil)
}

func (l *LimitStage) Dependencies() []fields.Path { return nil }

func (l *LimitStage) OutputSorts(p *Pipeline, pos int) Sorts {
	return propagatedSorts(p, pos, l)
}

func (l *LimitStage) Optimize() Stage { return l }

// optimizeAt folds an immediately following $limit into this one,
// keeping the smaller of the two limits.
func (l *LimitStage) optimizeAt(p *Pipeline, pos int) int {
	p.mustHold(pos, l)
	if pos+1 < len(p.stages) {
		if next, ok := p.stages[pos+1].(*LimitStage); ok {
			if next.n < l.n {
				l.n = next.n
			}
			p.stages = append(p.stages[:pos+1], p.stages[pos+2:]...)
			return pos
		}
	}
	return pos + 1
}

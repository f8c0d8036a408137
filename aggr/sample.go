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

// SampleStage selects a pseudo-random subset of its input.
// It is the target of the sample-pushdown rewrite.
type SampleStage struct {
	size int64
}

func parseSample(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, qerr.Parsef("the %s stage specification must be an object", name)
	}
	sz, ok := lookup(doc, "size")
	if !ok {
		return nil, qerr.Parsef("%s requires a 'size' field", name)
	}
	n, ok := asInt64(sz)
	if !ok || n < 0 {
		return nil, qerr.Parsef("size argument to %s must be a non-negative integer", name)
	}
	return []Stage{&SampleStage{size: n}}, nil
}

func (s *SampleStage) Name() string { return "$sample" }

// Size returns the number of documents the stage samples.
func (s *SampleStage) Size() int64 { return s.size }

func (s *SampleStage) Serialize() bson.D {
	return bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: s.size}}}}
}

func (s *SampleStage) Constraints() Constraints { return Constraints{} }

// ModifiedPaths: sampling re-orders documents in a way we do not
// characterize, so no path-dependent rewrite may cross it.
func (s *SampleStage) ModifiedPaths() ModifiedPaths { return NotSupported() }

func (s *SampleStage) Dependencies() []fields.Path { return nil }

// OutputSorts: the sample order is pseudo-random.
func (s *SampleStage) OutputSorts(p *Pipeline, pos int) Sorts {
	p.mustHold(pos, s)
	return Sorts{}
}

func (s *SampleStage) Optimize() Stage { return s }

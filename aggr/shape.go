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
	"strings"

	"github.com/dchest/siphash"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	shapeK0, shapeK1 = 0, 1
)

// Shape returns a hash of the pipeline's query shape: the
// serialized pipeline with every literal value replaced by a
// placeholder. Two pipelines that differ only in literal values
// (filter constants, skip counts, window bound offsets) share a
// shape, so the hash is a stable key for plan caches and for
// grouping queries in logs.
func (p *Pipeline) Shape() uint64 {
	shape := bson.A{}
	for _, s := range p.stages {
		shape = append(shape, redactValue(s.Serialize()))
	}
	buf, err := bson.Marshal(bson.D{{Key: "pipeline", Value: shape}})
	if err != nil {
		// the pipeline was built from bson values, so
		// re-marshaling them cannot fail
		panic(err)
	}
	return siphash.Hash(shapeK0, shapeK1, buf)
}

// ShapeKey returns Shape as a fixed-width hex string.
func (p *Pipeline) ShapeKey() string {
	return fmt.Sprintf("%016x", p.Shape())
}

// redactValue rewrites an expression value, keeping document keys
// and field references and replacing every other scalar with "?".
func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i := range t {
			out[i] = bson.E{Key: t[i].Key, Value: redactValue(t[i].Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i := range t {
			out[i] = redactValue(t[i])
		}
		return out
	case string:
		if strings.HasPrefix(t, "$") {
			return t
		}
		return "?"
	default:
		return "?"
	}
}

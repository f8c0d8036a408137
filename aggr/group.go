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

// GroupStage groups documents by a key expression and computes
// accumulators over each group.
type GroupStage struct {
	spec bson.D      // the full argument object, for serialization
	id   interface{} // the _id expression
}

func parseGroup(name string, v interface{}, _ *ParseContext) ([]Stage, error) {
	doc, ok := v.(bson.D)
	if !ok {
		return nil, qerr.Parsef("a %s's fields must be specified in an object", name)
	}
	id, ok := lookup(doc, "_id")
	if !ok {
		return nil, qerr.Parsef("a group specification must include an _id")
	}
	for _, e := range doc {
		if e.Key == "_id" {
			continue
		}
		if _, ok := e.Value.(bson.D); !ok {
			return nil, qerr.Parsef("the field %q must be an accumulator object", e.Key)
		}
	}
	return []Stage{&GroupStage{spec: doc, id: id}}, nil
}

func (g *GroupStage) Name() string { return "$group" }

func (g *GroupStage) Serialize() bson.D {
	return bson.D{{Key: "$group", Value: g.spec}}
}

func (g *GroupStage) Constraints() Constraints {
	return Constraints{CanSwapWithMatch: true}
}

// IDFieldCount returns the number of group-key fields:
// one for a single expression, or the number of members
// of a document-valued _id.
func (g *GroupStage) IDFieldCount() int {
	if doc, ok := g.id.(bson.D); ok {
		if _, isExpr := exprDocOperator(doc); !isExpr {
			return len(doc)
		}
	}
	return 1
}

// ModifiedPaths: a group preserves nothing, but group-key fields
// that are plain field references are logically just renamed.
func (g *GroupStage) ModifiedPaths() ModifiedPaths {
	renames := make(map[string]string)
	if p, ok := fieldRef(g.id); ok {
		renames["_id"] = p.String()
	} else if doc, isDoc := g.id.(bson.D); isDoc {
		if _, isExpr := exprDocOperator(doc); !isExpr {
			for _, e := range doc {
				if p, ok := fieldRef(e.Value); ok {
					renames["_id."+e.Key] = p.String()
				}
			}
		}
	}
	return AllExcept(fields.PathSet{}, renames)
}

func (g *GroupStage) Dependencies() []fields.Path {
	var set fields.PathSet
	collectExprRefs(g.spec, &set)
	return set.Slice()
}

// OutputSorts: hash grouping produces no deterministic order.
func (g *GroupStage) OutputSorts(p *Pipeline, pos int) Sorts {
	p.mustHold(pos, g)
	return Sorts{}
}

func (g *GroupStage) Optimize() Stage { return g }

// exprDocOperator reports whether doc is an operator expression
// (its first key starts with '$') rather than a document literal
// of sub-keys, and returns that operator.
func exprDocOperator(doc bson.D) (string, bool) {
	if len(doc) > 0 && len(doc[0].Key) > 0 && doc[0].Key[0] == '$' {
		return doc[0].Key, true
	}
	return "", false
}

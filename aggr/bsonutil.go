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
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/fields"
)

func lookup(doc bson.D, key string) (interface{}, bool) {
	for i := range doc {
		if doc[i].Key == key {
			return doc[i].Value, true
		}
	}
	return nil, false
}

func asInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	}
	return 0, false
}

// fieldRef parses an expression field reference like "$a.b".
// Variable references ("$$NOW") are not field references.
func fieldRef(v interface{}) (fields.Path, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$") || strings.HasPrefix(s, "$$") {
		return fields.Path{}, false
	}
	p, err := fields.Parse(s[1:])
	if err != nil {
		return fields.Path{}, false
	}
	return p, true
}

// collectExprRefs walks an expression value and collects every
// "$field" reference into set.
func collectExprRefs(v interface{}, set *fields.PathSet) {
	switch t := v.(type) {
	case string:
		if p, ok := fieldRef(t); ok {
			set.Add(p)
		}
	case bson.D:
		for i := range t {
			collectExprRefs(t[i].Value, set)
		}
	case bson.A:
		for i := range t {
			collectExprRefs(t[i], set)
		}
	}
}

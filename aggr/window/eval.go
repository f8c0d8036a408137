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

package window

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/chertdb/chert/qerr"
)

// Evaluator is the window package's view of the external
// expression-evaluation subsystem. Bound values in a window
// specification may be arbitrary constant expressions; the
// evaluator folds them to a single constant value, or reports
// that the expression is not a constant.
type Evaluator interface {
	// Constant evaluates v as a constant expression and
	// returns the folded value. It fails with a parse error
	// if v does not fold to a constant.
	Constant(v interface{}) (interface{}, error)
}

// ConstEvaluator is the default Evaluator. It folds literal
// values, the {$const: v} form, and $add/$multiply over
// constant numeric operands, which covers every bound
// expression the bounds grammar admits.
type ConstEvaluator struct{}

// Constant implements Evaluator.
func (e ConstEvaluator) Constant(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case int, int32, int64, float64, primitive.Decimal128:
		return v, nil
	case bson.D:
		if len(t) == 1 {
			switch t[0].Key {
			case "$const", "$literal":
				return t[0].Value, nil
			case "$add":
				return e.fold(t[0].Value, func(a, b float64) float64 { return a + b }, 0)
			case "$multiply":
				return e.fold(t[0].Value, func(a, b float64) float64 { return a * b }, 1)
			}
		}
	}
	return nil, qerr.Parsef("window bounds expression must be a constant")
}

func (e ConstEvaluator) fold(args interface{}, op func(a, b float64) float64, id float64) (interface{}, error) {
	arr, ok := args.(bson.A)
	if !ok {
		return nil, qerr.Parsef("window bounds expression must be a constant")
	}
	acc := id
	integral := true
	for i := range arr {
		c, err := e.Constant(arr[i])
		if err != nil {
			return nil, err
		}
		f, ok := asFloat(c)
		if !ok {
			return nil, qerr.Parsef("window bounds expression must be a constant number")
		}
		if f != float64(int64(f)) {
			integral = false
		}
		acc = op(acc, f)
	}
	if integral && acc == float64(int64(acc)) {
		return int64(acc), nil
	}
	return acc, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

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

	"github.com/chertdb/chert/qerr"
)

// BoundKind discriminates the three forms one end
// of a window can take.
type BoundKind uint8

const (
	// BoundUnbounded extends the window to the edge
	// of the partition.
	BoundUnbounded BoundKind = iota
	// BoundCurrent pins the window end to the current document.
	BoundCurrent
	// BoundValue is a concrete offset (document-based)
	// or delta (range-based).
	BoundValue
)

// Bound is one end of a window: unbounded, the current
// document, or a concrete value of type T.
type Bound[T any] struct {
	Kind  BoundKind
	Value T // meaningful only when Kind == BoundValue
}

// Unbounded returns the open-ended bound marker.
func Unbounded[T any]() Bound[T] { return Bound[T]{Kind: BoundUnbounded} }

// Current returns the current-document bound marker.
func Current[T any]() Bound[T] { return Bound[T]{Kind: BoundCurrent} }

// Of returns a concrete bound holding v.
func Of[T any](v T) Bound[T] { return Bound[T]{Kind: BoundValue, Value: v} }

// Bounds describes the set of documents around the current
// document that a window function aggregates over.
//
// Document-based bounds select documents by position:
//
//	documents: [-2, +4]
//	documents: ['unbounded', 0]
//
// Range-based bounds select documents by sort-key value,
// optionally scaled by a time unit:
//
//	range: [-0.3, +2.4]
//	range: [-1, 'current'], unit: 'second'
type Bounds interface {
	// appendTo writes the bounds fields (documents/range/unit)
	// into a window-function argument document.
	appendTo(args bson.D) bson.D
}

// DocumentBased bounds select documents by their position
// relative to the current document.
type DocumentBased struct {
	Lower Bound[int64]
	Upper Bound[int64]
}

// RangeBased bounds select documents whose sort-key value lies
// within [Lower, Upper] of the current document's sort key.
type RangeBased struct {
	Lower Bound[interface{}]
	Upper Bound[interface{}]
	// Unit scales the range for time-valued sort keys.
	// UnitNone means the range is in raw sort-key units.
	Unit TimeUnit
}

// DefaultBounds is the bounds used when a window-function
// specification names neither 'documents' nor 'range':
// document-based, unbounded in both directions.
func DefaultBounds() Bounds {
	return DocumentBased{Lower: Unbounded[int64](), Upper: Unbounded[int64]()}
}

// ParseBounds parses window bounds from the argument object of a
// window-function expression, e.g. {input: "$x", range: [-1, 1],
// unit: 'second'}. Fields other than documents, range, and unit
// are ignored; they belong to the enclosing function.
func ParseBounds(args bson.D, ev Evaluator) (Bounds, error) {
	documents, hasDocuments := lookupField(args, "documents")
	rng, hasRange := lookupField(args, "range")
	unit, hasUnit := lookupField(args, "unit")

	if hasDocuments && hasRange {
		return nil, qerr.Parsef("window bounds can specify either 'documents' or 'range', not both")
	}
	if hasUnit && !hasRange {
		return nil, qerr.Parsef("window bounds can only specify 'unit' with range-based bounds")
	}
	if !hasDocuments && !hasRange {
		return DefaultBounds(), nil
	}

	if hasDocuments {
		lower, upper, err := unpackPair(documents)
		if err != nil {
			return nil, err
		}
		lo, err := parseBound(ev, lower, asBoundInt)
		if err != nil {
			return nil, err
		}
		hi, err := parseBound(ev, upper, asBoundInt)
		if err != nil {
			return nil, err
		}
		return DocumentBased{Lower: lo, Upper: hi}, nil
	}

	lower, upper, err := unpackPair(rng)
	if err != nil {
		return nil, err
	}
	identity := func(v interface{}) (interface{}, error) { return v, nil }
	lo, err := parseBound(ev, lower, identity)
	if err != nil {
		return nil, err
	}
	hi, err := parseBound(ev, upper, identity)
	if err != nil {
		return nil, err
	}
	out := RangeBased{Lower: lo, Upper: hi}
	if hasUnit {
		s, ok := unit.(string)
		if !ok {
			return nil, qerr.Parsef("'unit' must be a string")
		}
		u, err := ParseTimeUnit(s)
		if err != nil {
			return nil, err
		}
		out.Unit = u
	}
	return out, nil
}

// AppendBounds writes b back into a window-function argument
// document, producing the exact fields ParseBounds consumes:
// parsing the result yields a value equal to b.
func AppendBounds(args bson.D, b Bounds) bson.D {
	return b.appendTo(args)
}

func (b DocumentBased) appendTo(args bson.D) bson.D {
	return append(args, bson.E{Key: "documents", Value: bson.A{
		serializeBound(b.Lower),
		serializeBound(b.Upper),
	}})
}

func (b RangeBased) appendTo(args bson.D) bson.D {
	args = append(args, bson.E{Key: "range", Value: bson.A{
		serializeBound(b.Lower),
		serializeBound(b.Upper),
	}})
	if b.Unit != UnitNone {
		args = append(args, bson.E{Key: "unit", Value: b.Unit.String()})
	}
	return args
}

func serializeBound[T any](b Bound[T]) interface{} {
	switch b.Kind {
	case BoundUnbounded:
		return "unbounded"
	case BoundCurrent:
		return "current"
	default:
		return b.Value
	}
}

// parseBound parses one element of a documents/range pair:
// the strings "unbounded" and "current" map to the markers,
// any other string is an error, and everything else must be
// a constant expression convertible by conv.
func parseBound[T any](ev Evaluator, elem interface{}, conv func(interface{}) (T, error)) (Bound[T], error) {
	if s, ok := elem.(string); ok {
		switch s {
		case "unbounded":
			return Unbounded[T](), nil
		case "current":
			return Current[T](), nil
		}
		return Bound[T]{}, qerr.Parsef("window bounds must be 'unbounded', 'current', or a number")
	}
	c, err := ev.Constant(elem)
	if err != nil {
		return Bound[T]{}, err
	}
	v, err := conv(c)
	if err != nil {
		return Bound[T]{}, err
	}
	return Of(v), nil
}

func asBoundInt(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t == float64(int64(t)) {
			return int64(t), nil
		}
	}
	return 0, qerr.Parsef("numeric document-based bounds must be an integer")
}

func unpackPair(v interface{}) (lower, upper interface{}, err error) {
	arr, ok := v.(bson.A)
	if !ok || len(arr) != 2 {
		return nil, nil, qerr.Parsef("window bounds must be a 2-element array")
	}
	return arr[0], arr[1], nil
}

func lookupField(doc bson.D, key string) (interface{}, bool) {
	for i := range doc {
		if doc[i].Key == key {
			return doc[i].Value, true
		}
	}
	return nil, false
}

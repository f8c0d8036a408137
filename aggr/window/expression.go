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

// Package window implements the window-function expression
// vocabulary of the $setWindowFields pipeline stage: the
// window-bounds value language (document- and range-based
// bounds with optional time units) and the name-to-parser
// registry for window functions themselves.
//
// Expressions are immutable syntax-tree nodes built once at
// parse time; Serialize mirrors the input shape exactly, so
// parse/serialize round-trips are lossless.
package window

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/compat"
	"github.com/chertdb/chert/qerr"
)

// Expression is a parsed window-function expression such as
// {$sum: {input: "$price", documents: [-2, 0]}}. It pairs a
// function name, an input sub-expression, and window bounds.
type Expression interface {
	// Name returns the window-function name, like "$sum".
	Name() string
	// Bounds returns the window bounds the function runs over.
	Bounds() Bounds
	// Serialize returns the {name: args} document mirroring
	// the specification the expression was parsed from.
	Serialize() bson.D
}

// Parser parses one window-function expression. It receives the
// whole element (some parsers switch on the function name), the
// sortBy specification of the enclosing stage (some functions
// require one), and the constant evaluator for bound values.
type Parser func(elem bson.E, sortBy bson.D, ev Evaluator) (Expression, error)

// Registry maps window-function names to parsers. It is built
// once at initialization and read-only afterwards, so lookups
// need no locking.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry holding the built-in
// accumulator-style window functions permitted by c.
// A nil c enables everything.
func NewRegistry(c *compat.Compat) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	if c.Enabled(compat.FlagWindowFunctions) {
		r.RegisterParser("$sum", FromAccumulator)
		r.RegisterParser("$max", FromAccumulator)
		r.RegisterParser("$min", FromAccumulator)
		r.RegisterParser("$avg", FromAccumulator)
	}
	return r
}

// RegisterParser adds a parser under name. Registration happens
// once, during process initialization; a duplicate name is a
// configuration error and panics.
func (r *Registry) RegisterParser(name string, p Parser) {
	if _, ok := r.parsers[name]; ok {
		panic(fmt.Sprintf("window: duplicate window function (%s) registered", name))
	}
	r.parsers[name] = p
}

// Parse parses a single window-function expression. The element's
// key is the function name and the value is the argument object,
// e.g. '$sum: {input: "$x"}'. sortBy is the sortBy argument of the
// enclosing stage, if any.
func (r *Registry) Parse(elem bson.E, sortBy bson.D, ev Evaluator) (Expression, error) {
	p, ok := r.parsers[elem.Key]
	if !ok {
		return nil, &qerr.UnrecognizedNameError{Kind: "window function", Name: elem.Key}
	}
	if _, ok := elem.Value.(bson.D); !ok {
		return nil, qerr.Parsef("window function %s requires an object", elem.Key)
	}
	return p(elem, sortBy, ev)
}

// accumulator is a window-function expression backed by an
// ordinary accumulator (sum, max, ...) applied over the window.
type accumulator struct {
	name   string
	input  interface{} // the input sub-expression, carried opaquely
	bounds Bounds
}

// FromAccumulator parses an accumulator-style window function:
// an 'input' expression plus window bounds in the same object.
func FromAccumulator(elem bson.E, sortBy bson.D, ev Evaluator) (Expression, error) {
	args := elem.Value.(bson.D)
	input, ok := lookupField(args, "input")
	if !ok {
		return nil, qerr.Parsef("window function %s requires an 'input' expression", elem.Key)
	}
	bounds, err := ParseBounds(args, ev)
	if err != nil {
		return nil, err
	}
	return &accumulator{name: elem.Key, input: input, bounds: bounds}, nil
}

func (a *accumulator) Name() string   { return a.name }
func (a *accumulator) Bounds() Bounds { return a.bounds }

func (a *accumulator) Serialize() bson.D {
	args := bson.D{{Key: "input", Value: a.input}}
	args = AppendBounds(args, a.bounds)
	return bson.D{{Key: a.name, Value: args}}
}

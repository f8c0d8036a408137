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

// Package qerr defines the typed error conditions produced
// while parsing pipeline specifications.
//
// The taxonomy is small and closed:
//
//   - *ParseError: a malformed or self-contradictory specification
//   - *UnrecognizedNameError: an unknown stage or window-function name
//   - *FeatureGateError: a feature suppressed by the compatibility mode
//   - *NotImplementedError: a structurally valid case the engine
//     does not support yet
//
// Components never catch and suppress these; they propagate unchanged
// to the query-compilation boundary, which handles user-facing
// formatting. Configuration errors (duplicate registration) and
// optimizer invariant violations are panics, not errors: they indicate
// programming mistakes, not bad queries.
package qerr

import "fmt"

// ParseError is a "failed to parse" condition: the specification
// object was malformed or self-contradictory.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

// Parsef builds a *ParseError from a format string.
func Parsef(f string, args ...interface{}) error {
	return &ParseError{Msg: fmt.Sprintf(f, args...)}
}

// UnrecognizedNameError reports a name with no registered parser.
// Kind is the vocabulary the name was looked up in,
// e.g. "pipeline stage" or "window function".
type UnrecognizedNameError struct {
	Kind string
	Name string
}

func (e *UnrecognizedNameError) Error() string {
	return fmt.Sprintf("unrecognized %s name: %q", e.Kind, e.Name)
}

// FeatureGateError reports a feature that exists but is not
// allowed in the current compatibility mode.
type FeatureGateError struct {
	Name     string
	Required string // minimum feature version
	Current  string // active compatibility version
}

func (e *FeatureGateError) Error() string {
	return fmt.Sprintf("%s is not allowed in the current compatibility mode (requires version %s, running %s)",
		e.Name, e.Required, e.Current)
}

// NotImplementedError reports a structurally valid specification
// the engine explicitly does not support, rather than silently
// approximating it.
type NotImplementedError struct {
	What string
}

func (e *NotImplementedError) Error() string {
	return e.What + " is not implemented"
}

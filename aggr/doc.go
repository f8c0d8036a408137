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

// Package aggr implements the query-pipeline optimization core
// of the aggregation engine.
//
// A pipeline is an ordered sequence of stages, each parsed from a
// one-field specification object like {$match: {...}} by a Registry.
// The critical entry points are Parse and Pipeline.Optimize:
// Optimize walks the stage sequence applying local,
// semantics-preserving rewrites (filter pushdown, sample pushdown,
// and per-stage hooks), consulting each stage's ModifiedPaths
// descriptor to prove that a rewrite is safe.
//
// The package does not execute pipelines: it only parses,
// rewrites, and re-serializes them. Document values are
// represented with the bson package; expression evaluation
// is delegated to the window.Evaluator interface.
package aggr

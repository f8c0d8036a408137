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

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/aggr/window"
	"github.com/chertdb/chert/compat"
	"github.com/chertdb/chert/qerr"
)

// ParseContext carries the collaborators a stage parser may need.
type ParseContext struct {
	Registry *Registry
	Compat   *compat.Compat
	Windows  *window.Registry
	Eval     window.Evaluator
}

// StageParser turns the argument of a one-field stage specification
// into one or more stage nodes. Most stages produce exactly one.
type StageParser func(name string, v interface{}, ctx *ParseContext) ([]Stage, error)

type stageRegistration struct {
	parser     StageParser
	minVersion compat.Version
	flag       string
}

// StageOption configures a stage registration.
type StageOption func(*stageRegistration)

// MinVersion gates the stage behind a minimum feature version:
// parsing it in an older compatibility mode yields a
// *qerr.FeatureGateError.
func MinVersion(v compat.Version) StageOption {
	return func(r *stageRegistration) { r.minVersion = v }
}

// RequireFlag suppresses the registration entirely when the named
// capability flag is disabled. Using the stage then fails exactly
// as an unregistered name does.
func RequireFlag(flag string) StageOption {
	return func(r *stageRegistration) { r.flag = flag }
}

// Registry maps stage names to parsers. It is constructed once,
// during process initialization, by an ordered list of
// registration calls; it is read-only afterwards, so concurrent
// lookups need no locking.
type Registry struct {
	stages  map[string]stageRegistration
	windows *window.Registry
	compat  *compat.Compat
	eval    window.Evaluator
}

// NewRegistry builds a registry holding the built-in stages
// permitted by c. A nil c enables everything.
func NewRegistry(c *compat.Compat) *Registry {
	r := &Registry{
		stages:  make(map[string]stageRegistration),
		windows: window.NewRegistry(c),
		compat:  c,
		eval:    window.ConstEvaluator{},
	}
	r.RegisterStage("$match", parseMatch)
	r.RegisterStage("$group", parseGroup)
	r.RegisterStage("$sample", parseSample)
	r.RegisterStage("$skip", parseSkip)
	r.RegisterStage("$limit", parseLimit)
	r.RegisterStage("$sort", parseSort)
	r.RegisterStage("$project", parseProject)
	r.RegisterStage("$addFields", parseAddFields)
	r.RegisterStage("$set", parseAddFields)
	r.RegisterStage("$unset", parseUnset)
	r.RegisterStage("$setWindowFields", parseSetWindowFields,
		MinVersion(compat.Version{Major: 5, Minor: 0}),
		RequireFlag(compat.FlagWindowFunctions))
	return r
}

// Windows returns the window-function registry associated with r,
// so callers can register additional window functions during
// initialization.
func (r *Registry) Windows() *window.Registry { return r.windows }

// RegisterStage adds a parser under name. Registration happens once,
// at process initialization; a duplicate name is a configuration
// error and panics. A registration gated behind a disabled
// capability flag is silently skipped.
func (r *Registry) RegisterStage(name string, parser StageParser, opts ...StageOption) {
	if name == "" || parser == nil {
		panic("aggr: bad stage registration")
	}
	reg := stageRegistration{parser: parser}
	for _, opt := range opts {
		opt(&reg)
	}
	if reg.flag != "" && !r.compat.Enabled(reg.flag) {
		return
	}
	if _, ok := r.stages[name]; ok {
		panic(fmt.Sprintf("aggr: duplicate pipeline stage (%s) registered", name))
	}
	r.stages[name] = reg
}

// ParseStage parses one stage specification object, which must
// contain exactly one field naming the stage.
func (r *Registry) ParseStage(spec bson.D) ([]Stage, error) {
	if len(spec) != 1 {
		return nil, qerr.Parsef("a pipeline stage specification object must contain exactly one field")
	}
	elem := spec[0]
	reg, ok := r.stages[elem.Key]
	if !ok {
		return nil, &qerr.UnrecognizedNameError{Kind: "pipeline stage", Name: elem.Key}
	}
	if !r.compat.Allows(reg.minVersion) {
		return nil, &qerr.FeatureGateError{
			Name:     elem.Key,
			Required: reg.minVersion.String(),
			Current:  r.compat.Version.String(),
		}
	}
	ctx := &ParseContext{Registry: r, Compat: r.compat, Windows: r.windows, Eval: r.eval}
	return reg.parser(elem.Key, elem.Value, ctx)
}

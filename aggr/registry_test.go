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
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/chertdb/chert/compat"
	"github.com/chertdb/chert/qerr"
)

func TestParseStageOneField(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.ParseStage(bson.D{
		{Key: "$match", Value: bson.D{}},
		{Key: "$limit", Value: 1},
	})
	var pe *qerr.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a parse error, got %v", err)
	}
	if _, err := reg.ParseStage(bson.D{}); err == nil {
		t.Fatalf("empty specification object should not parse")
	}
}

func TestParseStageUnrecognized(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.ParseStage(bson.D{{Key: "$frobnicate", Value: bson.D{}}})
	var ue *qerr.UnrecognizedNameError
	if !errors.As(err, &ue) {
		t.Fatalf("expected an unrecognized-name error, got %v", err)
	}
	if ue.Kind != "pipeline stage" || ue.Name != "$frobnicate" {
		t.Errorf("unexpected error detail: %+v", ue)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := NewRegistry(nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate registration should panic")
		}
	}()
	reg.RegisterStage("$match", parseMatch)
}

func TestVersionGate(t *testing.T) {
	c := &compat.Compat{Version: compat.Version{Major: 4, Minor: 4}}
	reg := NewRegistry(c)
	spec := bson.D{{Key: "$setWindowFields", Value: bson.D{
		{Key: "output", Value: bson.D{
			{Key: "t", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "input", Value: "$q"}}}}},
		}},
	}}}
	_, err := reg.ParseStage(spec)
	var fe *qerr.FeatureGateError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a feature-gate error, got %v", err)
	}
	if fe.Name != "$setWindowFields" || fe.Required != "5.0" || fe.Current != "4.4" {
		t.Errorf("unexpected error detail: %+v", fe)
	}

	// At 5.0 the stage parses.
	reg = NewRegistry(&compat.Compat{Version: compat.Version{Major: 5, Minor: 0}})
	if _, err := reg.ParseStage(spec); err != nil {
		t.Fatalf("5.0 mode: %s", err)
	}
}

func TestFlagGate(t *testing.T) {
	// With the capability flag off, the stage is never registered,
	// so using it fails exactly like an unknown name does.
	c := &compat.Compat{Flags: map[string]bool{compat.FlagWindowFunctions: false}}
	reg := NewRegistry(c)
	_, err := reg.ParseStage(bson.D{{Key: "$setWindowFields", Value: bson.D{
		{Key: "output", Value: bson.D{}},
	}}})
	var ue *qerr.UnrecognizedNameError
	if !errors.As(err, &ue) {
		t.Fatalf("expected an unrecognized-name error, got %v", err)
	}
}

func TestParsePipelineErrorPosition(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := Parse(reg, []bson.D{
		{{Key: "$match", Value: bson.D{}}},
		{{Key: "$limit", Value: 0}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got[:17] != "pipeline stage 1:" {
		t.Errorf("error should name the failing position: %q", got)
	}
}

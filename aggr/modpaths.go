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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/chertdb/chert/fields"
)

// ModKind classifies how precisely a stage's effect on
// field names can be described.
type ModKind uint8

const (
	// ModNotSupported means the stage's effect on field names
	// cannot be statically characterized. It blocks every
	// path-dependent rewrite.
	ModNotSupported ModKind = iota
	// ModAllPaths means the stage may rewrite every field.
	ModAllPaths
	// ModFiniteSet means the stage modifies exactly Paths and
	// renames Renames, implicitly preserving everything else.
	ModFiniteSet
	// ModAllExcept means the stage preserves exactly Paths
	// (plus the Renames sources, under their new names) and
	// loses every other field.
	ModAllExcept
)

var modKindNames = [...]string{
	ModNotSupported: "notSupported",
	ModAllPaths:     "allPaths",
	ModFiniteSet:    "finiteSet",
	ModAllExcept:    "allExcept",
}

func (k ModKind) String() string { return modKindNames[k] }

// ModifiedPaths describes what a stage does to field names:
// which fields it destroys, preserves, or renames. It is the
// evidence the optimizer consults before reordering stages and
// the input to sort-order propagation.
type ModifiedPaths struct {
	Kind ModKind
	// Paths is the modified set (ModFiniteSet) or the preserved
	// set (ModAllExcept).
	Paths fields.PathSet
	// Renames maps new names to old names. A destination may be
	// dotted; dotted destinations are carried for the optimizer's
	// pushdown rewriting but never imply the source is available
	// under the full dotted name (assignment to a dotted path
	// broadcasts rather than aliases).
	Renames map[string]string
	// ComputedMonotonic records fields that are monotonic
	// functions of a named input. It is carried through for
	// future sort-order reasoning and not otherwise interpreted.
	ComputedMonotonic map[string]string
}

// NotSupported returns the descriptor that blocks all
// path-dependent rewrites.
func NotSupported() ModifiedPaths { return ModifiedPaths{Kind: ModNotSupported} }

// AllPaths returns the descriptor for a stage that may
// rewrite every field.
func AllPaths() ModifiedPaths { return ModifiedPaths{Kind: ModAllPaths} }

// FiniteSet returns the descriptor for a stage that modifies
// exactly paths and renames renames.
func FiniteSet(paths fields.PathSet, renames map[string]string) ModifiedPaths {
	return ModifiedPaths{Kind: ModFiniteSet, Paths: paths, Renames: renames}
}

// AllExcept returns the descriptor for a stage that preserves
// exactly paths, renames renames, and loses everything else.
func AllExcept(paths fields.PathSet, renames map[string]string) ModifiedPaths {
	return ModifiedPaths{Kind: ModAllExcept, Paths: paths, Renames: renames}
}

// WhatHappenedTo reports the names a value reachable at oldName
// before the stage is known to have after the stage. The result
// may be empty (provenance lost) or contain several names (the
// field was preserved and renamed). Only ModFiniteSet and
// ModAllExcept descriptors ever report names.
func (m ModifiedPaths) WhatHappenedTo(oldName fields.Path) []fields.Path {
	var newNames []fields.Path

	switch m.Kind {
	case ModFiniteSet:
		// A finite set implicitly preserves oldName unless
		// something in Paths or the rename destinations
		// overwrites part of it.
		preserved := !m.Paths.ContainsOverlap(oldName)
		if preserved {
			for _, to := range sortedKeys(m.Renames) {
				dest, err := fields.Parse(to)
				if err == nil && dest.Overlaps(oldName) {
					preserved = false
					break
				}
			}
		}
		if preserved {
			newNames = append(newNames, oldName)
		}
	case ModAllExcept:
		// Preservation is explicit: oldName survives if any
		// prefix of it (including itself) is preserved.
		for i := 1; i <= oldName.Len(); i++ {
			if m.Paths.Contains(oldName.Prefix(i)) {
				newNames = append(newNames, oldName)
				break
			}
		}
	default:
		// No finite description; provenance is lost.
		return nil
	}

	// In both remaining cases a rename may have replaced a prefix
	// of oldName: with {x: a.b} renamed, a.b.c is now named x.c.
	// A dotted destination is excluded: {x.y: a} does not mean 'a'
	// is reachable at 'x.y', because assigning to a dotted path
	// can affect several logical fields at once.
	for _, to := range sortedKeys(m.Renames) {
		dest, err := fields.Parse(to)
		if err != nil || dest.Len() != 1 {
			continue
		}
		src, err := fields.Parse(m.Renames[to])
		if err != nil {
			continue
		}
		if src.IsPrefixOf(oldName) {
			renamed := dest.Concat(oldName.Suffix(src.Len()))
			if !containsPath(newNames, renamed) {
				newNames = append(newNames, renamed)
			}
		}
	}
	return newNames
}

// Serialize returns the explain-style description of m.
func (m ModifiedPaths) Serialize() bson.D {
	out := bson.D{{Key: "type", Value: m.Kind.String()}}
	paths := bson.A{}
	for _, p := range m.Paths.Slice() {
		paths = append(paths, p.String())
	}
	out = append(out, bson.E{Key: "paths", Value: paths})
	if len(m.Renames) > 0 {
		renames := bson.D{}
		for _, to := range sortedKeys(m.Renames) {
			renames = append(renames, bson.E{Key: to, Value: m.Renames[to]})
		}
		out = append(out, bson.E{Key: "renames", Value: renames})
	}
	if len(m.ComputedMonotonic) > 0 {
		mono := bson.D{}
		for _, to := range sortedKeys(m.ComputedMonotonic) {
			mono = append(mono, bson.E{Key: to, Value: m.ComputedMonotonic[to]})
		}
		out = append(out, bson.E{Key: "computedMonotonic", Value: mono})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

func containsPath(ps []fields.Path, p fields.Path) bool {
	for i := range ps {
		if ps[i].Equal(p) {
			return true
		}
	}
	return false
}

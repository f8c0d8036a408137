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
	"golang.org/x/exp/slices"

	"github.com/chertdb/chert/fields"
)

// SortKey is one component of a sort pattern.
type SortKey struct {
	Path       fields.Path
	Descending bool
}

// SortPattern is an ordered sequence of sort keys,
// like {a: 1, b: -1}.
type SortPattern []SortKey

// Equal returns whether two patterns have identical components.
func (s SortPattern) Equal(t SortPattern) bool {
	return slices.EqualFunc(s, t, func(a, b SortKey) bool {
		return a.Descending == b.Descending && a.Path.Equal(b.Path)
	})
}

// Serialize returns the {field: 1|-1, ...} form of s.
func (s SortPattern) Serialize() bson.D {
	out := bson.D{}
	for _, k := range s {
		dir := int32(1)
		if k.Descending {
			dir = -1
		}
		out = append(out, bson.E{Key: k.Path.String(), Value: dir})
	}
	return out
}

// Sorts is a set of sort patterns: the sort orders a pipeline
// position is known to guarantee on its output.
type Sorts struct {
	patterns []SortPattern
}

// SortsOf builds a Sorts set from the given patterns.
func SortsOf(pats ...SortPattern) Sorts {
	var s Sorts
	for _, p := range pats {
		s.Add(p)
	}
	return s
}

// Add inserts pat if an equal pattern is not already present.
func (s *Sorts) Add(pat SortPattern) {
	if !s.Contains(pat) {
		s.patterns = append(s.patterns, pat)
	}
}

// Contains returns whether the set holds a pattern equal to pat.
func (s Sorts) Contains(pat SortPattern) bool {
	for i := range s.patterns {
		if s.patterns[i].Equal(pat) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (s Sorts) Len() int { return len(s.patterns) }

// Patterns returns the members of the set.
// The caller must not modify the result.
func (s Sorts) Patterns() []SortPattern { return s.patterns }

// Equal returns whether two sets hold the same patterns,
// regardless of insertion order.
func (s Sorts) Equal(t Sorts) bool {
	if len(s.patterns) != len(t.patterns) {
		return false
	}
	for i := range s.patterns {
		if !t.Contains(s.patterns[i]) {
			return false
		}
	}
	return true
}

// Rename substitutes field paths through oldToNew, which maps an
// old path (by its dotted form) to the zero or more names its value
// is available under after a stage. Each pattern expands to the
// cross product of its components' new names; a pattern containing
// a component with no new name is dropped, since that sort order is
// no longer derivable.
func (s Sorts) Rename(oldToNew map[string][]fields.Path) Sorts {
	var out Sorts
	for _, pat := range s.patterns {
		for _, renamed := range renamePattern(pat, oldToNew) {
			out.Add(renamed)
		}
	}
	return out
}

// renamePattern returns every renaming of pat under oldToNew.
// It is a pure function: each call returns freshly allocated
// patterns and no accumulator is shared across calls.
func renamePattern(pat SortPattern, oldToNew map[string][]fields.Path) []SortPattern {
	if len(pat) == 0 {
		return []SortPattern{{}}
	}
	head := pat[0]
	tails := renamePattern(pat[1:], oldToNew)
	var out []SortPattern
	for _, name := range oldToNew[head.Path.String()] {
		for _, tail := range tails {
			renamed := make(SortPattern, 0, len(pat))
			renamed = append(renamed, SortKey{Path: name, Descending: head.Descending})
			renamed = append(renamed, tail...)
			out = append(out, renamed)
		}
	}
	return out
}

// Serialize returns the explain form of the set: an array
// of serialized sort patterns.
func (s Sorts) Serialize() bson.A {
	out := bson.A{}
	for _, pat := range s.patterns {
		out = append(out, pat.Serialize())
	}
	return out
}

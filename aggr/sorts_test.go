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
	"testing"

	"github.com/chertdb/chert/fields"
)

func pattern(keys ...string) SortPattern {
	out := make(SortPattern, 0, len(keys))
	for _, k := range keys {
		desc := false
		if k[0] == '-' {
			desc = true
			k = k[1:]
		}
		out = append(out, SortKey{Path: fields.MustParse(k), Descending: desc})
	}
	return out
}

func TestSortsEqual(t *testing.T) {
	a := SortsOf(pattern("a"), pattern("a", "-b"))
	b := SortsOf(pattern("a", "-b"), pattern("a"))
	if !a.Equal(b) {
		t.Errorf("set equality should ignore insertion order")
	}
	if a.Equal(SortsOf(pattern("a"))) {
		t.Errorf("sets of different size reported equal")
	}
	if a.Equal(SortsOf(pattern("a"), pattern("a", "b"))) {
		t.Errorf("sets with different directions reported equal")
	}

	// Add dedupes.
	c := SortsOf(pattern("a"), pattern("a"))
	if c.Len() != 1 {
		t.Errorf("Add should dedupe: Len = %d", c.Len())
	}
}

func TestSortsRename(t *testing.T) {
	tests := []struct {
		name     string
		in       Sorts
		oldToNew map[string][]fields.Path
		want     Sorts
	}{
		{
			name: "identity",
			in:   SortsOf(pattern("a", "-b")),
			oldToNew: map[string][]fields.Path{
				"a": {fields.MustParse("a")},
				"b": {fields.MustParse("b")},
			},
			want: SortsOf(pattern("a", "-b")),
		},
		{
			name: "single-rename",
			in:   SortsOf(pattern("a", "-b")),
			oldToNew: map[string][]fields.Path{
				"a": {fields.MustParse("x")},
				"b": {fields.MustParse("b")},
			},
			want: SortsOf(pattern("x", "-b")),
		},
		{
			name: "cross-product",
			in:   SortsOf(pattern("a", "-b")),
			oldToNew: map[string][]fields.Path{
				"a": {fields.MustParse("a"), fields.MustParse("x")},
				"b": {fields.MustParse("b"), fields.MustParse("y")},
			},
			want: SortsOf(
				pattern("a", "-b"),
				pattern("a", "-y"),
				pattern("x", "-b"),
				pattern("x", "-y"),
			),
		},
		{
			name: "lost-component-drops-pattern",
			in:   SortsOf(pattern("a", "-b"), pattern("a")),
			oldToNew: map[string][]fields.Path{
				"a": {fields.MustParse("a")},
				"b": nil,
			},
			want: SortsOf(pattern("a")),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Rename(tc.oldToNew)
			if !got.Equal(tc.want) {
				t.Errorf("got %v patterns, want %v patterns", got.Patterns(), tc.want.Patterns())
			}
		})
	}
}

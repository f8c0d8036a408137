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

func pathset(ps ...string) fields.PathSet {
	var s fields.PathSet
	for _, p := range ps {
		s.Add(fields.MustParse(p))
	}
	return s
}

func TestWhatHappenedTo(t *testing.T) {
	tests := []struct {
		name string
		mod  ModifiedPaths
		old  string
		want []string
	}{
		{
			name: "finite-empty-preserves",
			mod:  FiniteSet(fields.PathSet{}, nil),
			old:  "a",
			want: []string{"a"},
		},
		{
			name: "finite-modified-path-lost",
			mod:  FiniteSet(pathset("a"), nil),
			old:  "a",
			want: nil,
		},
		{
			name: "finite-modified-child-loses-parent",
			mod:  FiniteSet(pathset("a.b"), nil),
			old:  "a",
			want: nil,
		},
		{
			name: "finite-sibling-survives",
			mod:  FiniteSet(pathset("a.x"), nil),
			old:  "a.y",
			want: []string{"a.y"},
		},
		{
			name: "finite-rename-keeps-both-names",
			mod:  FiniteSet(fields.PathSet{}, map[string]string{"b": "a"}),
			old:  "a",
			want: []string{"a", "b"},
		},
		{
			name: "finite-rename-propagates-to-subfield",
			mod:  FiniteSet(fields.PathSet{}, map[string]string{"b": "a"}),
			old:  "a.c",
			want: []string{"a.c", "b.c"},
		},
		{
			name: "finite-rename-destination-overwritten",
			mod:  FiniteSet(fields.PathSet{}, map[string]string{"a": "z"}),
			old:  "a",
			want: nil,
		},
		{
			name: "finite-dotted-destination-ignored",
			mod:  FiniteSet(fields.PathSet{}, map[string]string{"x.y": "a"}),
			old:  "a",
			want: []string{"a"},
		},
		{
			name: "all-except-unmentioned-lost",
			mod:  AllExcept(fields.PathSet{}, nil),
			old:  "a",
			want: nil,
		},
		{
			name: "all-except-preserved",
			mod:  AllExcept(pathset("a"), nil),
			old:  "a",
			want: []string{"a"},
		},
		{
			name: "all-except-preserved-parent-keeps-child",
			mod:  AllExcept(pathset("a"), nil),
			old:  "a.b",
			want: []string{"a.b"},
		},
		{
			name: "all-except-rename-only",
			mod:  AllExcept(fields.PathSet{}, map[string]string{"_id": "x"}),
			old:  "x",
			want: []string{"_id"},
		},
		{
			name: "all-except-rename-subfield",
			mod:  AllExcept(fields.PathSet{}, map[string]string{"_id": "x"}),
			old:  "x.y",
			want: []string{"_id.y"},
		},
		{
			name: "not-supported-loses-everything",
			mod:  NotSupported(),
			old:  "a",
			want: nil,
		},
		{
			name: "all-paths-loses-everything",
			mod:  AllPaths(),
			old:  "a",
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.mod.WhatHappenedTo(fields.MustParse(tc.old))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i].String() != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

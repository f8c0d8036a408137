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

package fields

import (
	"golang.org/x/exp/slices"
)

// PathSet is a set of Paths kept in sorted order.
// The zero PathSet is an empty set ready for use.
type PathSet struct {
	paths []Path
}

// SetOf builds a PathSet from the given paths.
func SetOf(paths ...Path) PathSet {
	var s PathSet
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p into the set.
func (s *PathSet) Add(p Path) {
	i, ok := slices.BinarySearchFunc(s.paths, p, cmpPath)
	if ok {
		return
	}
	s.paths = slices.Insert(s.paths, i, p)
}

// Contains returns whether the set contains exactly p.
func (s PathSet) Contains(p Path) bool {
	_, ok := slices.BinarySearchFunc(s.paths, p, cmpPath)
	return ok
}

// ContainsOverlap returns whether any member of the set overlaps p.
func (s PathSet) ContainsOverlap(p Path) bool {
	for i := range s.paths {
		if s.paths[i].Overlaps(p) {
			return true
		}
	}
	return false
}

// ContainsPrefixOf returns whether any member of the set
// is a (possibly equal) prefix of p.
func (s PathSet) ContainsPrefixOf(p Path) bool {
	for i := range s.paths {
		if s.paths[i].IsPrefixOf(p) {
			return true
		}
	}
	return false
}

// Len returns the number of paths in the set.
func (s PathSet) Len() int { return len(s.paths) }

// Slice returns the members of the set in sorted order.
// The caller must not modify the result.
func (s PathSet) Slice() []Path { return s.paths }

// Equal returns whether two sets have the same members.
func (s PathSet) Equal(t PathSet) bool {
	return slices.EqualFunc(s.paths, t.paths, Path.Equal)
}

func cmpPath(a, b Path) int {
	if a.Equal(b) {
		return 0
	}
	if a.Less(b) {
		return -1
	}
	return 1
}

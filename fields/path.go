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

// Package fields implements the dotted field-path algebra
// used by the aggregation pipeline optimizer.
//
// A Path is an ordered, non-empty list of segments like "a.b.c".
// Paths are immutable values: every operation returns a new Path
// and never aliases the receiver's backing storage in a way that
// would let callers observe mutation.
package fields

import (
	"fmt"
	"strings"
)

// Separator is the character that joins path segments.
const Separator = '.'

// Path is a dotted field path.
//
// The zero Path is empty and invalid; valid paths
// are produced by Parse, New, and the Path methods.
type Path struct {
	segs []string
}

// Parse parses a dotted path like "a.b.c".
//
// Empty paths and paths with empty segments
// (leading, trailing, or doubled separators) are rejected.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("field path may not be empty")
	}
	segs := strings.Split(s, string(Separator))
	for i := range segs {
		if segs[i] == "" {
			return Path{}, fmt.Errorf("field path %q has an empty segment", s)
		}
	}
	return Path{segs: segs}, nil
}

// MustParse is Parse, except it panics on invalid input.
// It is intended for statically known paths.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// New builds a path from individual segments.
// It panics if no segments are given or if any
// segment is empty or contains the separator.
func New(segs ...string) Path {
	if len(segs) == 0 {
		panic("fields.New: empty path")
	}
	for _, s := range segs {
		if s == "" || strings.ContainsRune(s, Separator) {
			panic(fmt.Sprintf("fields.New: bad segment %q", s))
		}
	}
	return Path{segs: append([]string(nil), segs...)}
}

// Len returns the number of segments in p.
func (p Path) Len() int { return len(p.segs) }

// IsZero returns whether p is the zero (invalid) Path.
func (p Path) IsZero() bool { return len(p.segs) == 0 }

// Segment returns the i'th segment of p.
func (p Path) Segment(i int) string { return p.segs[i] }

// Prefix returns the path consisting of the first n segments of p.
func (p Path) Prefix(n int) Path {
	if n <= 0 || n > len(p.segs) {
		panic(fmt.Sprintf("fields.Path.Prefix: %d out of range 1..%d", n, len(p.segs)))
	}
	return Path{segs: p.segs[:n:n]}
}

// Suffix returns the path consisting of the segments of p
// after the first n. The result is zero if n == p.Len().
func (p Path) Suffix(n int) Path {
	if n < 0 || n > len(p.segs) {
		panic(fmt.Sprintf("fields.Path.Suffix: %d out of range 0..%d", n, len(p.segs)))
	}
	return Path{segs: p.segs[n:]}
}

// Concat returns the concatenation of p and q.
// A zero q yields p, and vice versa.
func (p Path) Concat(q Path) Path {
	if q.IsZero() {
		return p
	}
	if p.IsZero() {
		return q
	}
	segs := make([]string, 0, len(p.segs)+len(q.segs))
	segs = append(segs, p.segs...)
	segs = append(segs, q.segs...)
	return Path{segs: segs}
}

// Equal returns whether p and q have identical segments.
func (p Path) Equal(q Path) bool {
	if len(p.segs) != len(q.segs) {
		return false
	}
	for i := range p.segs {
		if p.segs[i] != q.segs[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf returns whether p is a (possibly equal) prefix of q.
func (p Path) IsPrefixOf(q Path) bool {
	if len(p.segs) > len(q.segs) {
		return false
	}
	return p.Equal(q.Prefix(len(p.segs)))
}

// Overlaps returns whether p and q refer to overlapping
// portions of a document: one is a prefix of the other.
// For example "a.b" overlaps "a.b.c" (modifying "a.b.c"
// also modifies "a.b"), but "a.x" does not overlap "a.y".
func (p Path) Overlaps(q Path) bool {
	n := len(p.segs)
	if len(q.segs) < n {
		n = len(q.segs)
	}
	return p.Prefix(n).Equal(q.Prefix(n))
}

// Less orders paths lexicographically by segment.
func (p Path) Less(q Path) bool {
	n := len(p.segs)
	if len(q.segs) < n {
		n = len(q.segs)
	}
	for i := 0; i < n; i++ {
		if p.segs[i] != q.segs[i] {
			return p.segs[i] < q.segs[i]
		}
	}
	return len(p.segs) < len(q.segs)
}

// String returns the dotted form of p.
func (p Path) String() string {
	return strings.Join(p.segs, string(Separator))
}

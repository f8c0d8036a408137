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

// Package compat describes the compatibility mode of the query engine:
// the maximum feature version the caller is willing to use, plus a set
// of named capability flags. Stage and window-function registration
// consults this information so that newly introduced pipeline features
// can be suppressed when operating in an older compatibility mode.
package compat

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"
)

// Named capability flags recognized by the built-in registries.
const (
	// FlagWindowFunctions gates the $setWindowFields stage and
	// the window-function expression vocabulary.
	FlagWindowFunctions = "windowFunctions"
)

// Version is a feature-compatibility version like "5.0".
// The zero Version means "no constraint".
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses a version string of the form "major.minor".
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("bad version %q: expected major.minor", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, fmt.Errorf("bad version %q: %w", s, err)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, fmt.Errorf("bad version %q: %w", s, err)
	}
	if ma <= 0 || mi < 0 {
		return Version{}, fmt.Errorf("bad version %q", s)
	}
	return Version{Major: ma, Minor: mi}, nil
}

// IsZero returns whether v is the unconstrained zero Version.
func (v Version) IsZero() bool { return v == Version{} }

// AtLeast returns whether v is at least w.
func (v Version) AtLeast(w Version) bool {
	if v.Major != w.Major {
		return v.Major > w.Major
	}
	return v.Minor >= w.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compat is a compatibility mode. A nil *Compat imposes
// no constraints: every version and flag is allowed.
type Compat struct {
	// Version is the maximum feature version allowed.
	// The zero Version allows everything.
	Version Version
	// Flags maps capability-flag names to their state.
	// Flags absent from the map default to enabled.
	Flags map[string]bool
}

// Allows returns whether a feature requiring min is usable.
// A zero min never constrains.
func (c *Compat) Allows(min Version) bool {
	if c == nil || min.IsZero() || c.Version.IsZero() {
		return true
	}
	return c.Version.AtLeast(min)
}

// Enabled returns whether the named capability flag is enabled.
func (c *Compat) Enabled(flag string) bool {
	if c == nil {
		return true
	}
	on, ok := c.Flags[flag]
	return !ok || on
}

// fileCompat is the wire form of a compat file.
// The file is YAML (or JSON, which is a subset):
//
//	version: "5.0"
//	flags:
//	  windowFunctions: false
type fileCompat struct {
	Version string          `json:"version,omitempty"`
	Flags   map[string]bool `json:"flags,omitempty"`
}

// Load reads a compatibility mode from a YAML or JSON file.
func Load(path string) (*Compat, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileCompat
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return nil, fmt.Errorf("compat file %s: %w", path, err)
	}
	c := &Compat{Flags: fc.Flags}
	if fc.Version != "" {
		v, err := ParseVersion(fc.Version)
		if err != nil {
			return nil, fmt.Errorf("compat file %s: %w", path, err)
		}
		c.Version = v
	}
	return c, nil
}

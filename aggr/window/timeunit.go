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

package window

import (
	"github.com/chertdb/chert/qerr"
)

// TimeUnit is the unit attached to range-based window bounds
// over a time-valued sort key. The zero TimeUnit means "no unit".
type TimeUnit uint8

const (
	UnitNone TimeUnit = iota
	UnitYear
	UnitQuarter
	UnitMonth
	UnitWeek
	UnitDay
	UnitHour
	UnitMinute
	UnitSecond
	UnitMillisecond
)

var unitNames = [...]string{
	UnitNone:        "",
	UnitYear:        "year",
	UnitQuarter:     "quarter",
	UnitMonth:       "month",
	UnitWeek:        "week",
	UnitDay:         "day",
	UnitHour:        "hour",
	UnitMinute:      "minute",
	UnitSecond:      "second",
	UnitMillisecond: "millisecond",
}

// ParseTimeUnit parses a time-unit name like "second".
func ParseTimeUnit(s string) (TimeUnit, error) {
	for u := UnitYear; u <= UnitMillisecond; u++ {
		if unitNames[u] == s {
			return u, nil
		}
	}
	return UnitNone, qerr.Parsef("unrecognized time unit %q", s)
}

func (u TimeUnit) String() string {
	if int(u) >= len(unitNames) {
		return "unknown"
	}
	return unitNames[u]
}

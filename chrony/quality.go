/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package chrony reports the quality of local time synchronization.
// It queries chronyd either by running `chronyc tracking` and parsing the
// textual report, or by speaking the cmdmon protocol directly, and caches
// the result for a short interval so concurrent callers don't hammer the
// daemon.
package chrony

import "fmt"

// TimeQuality describes how well the local clock is synchronized, as
// reported by chronyd. A nil TimeQuality means "unknown/unsynchronized"
// and is a normal steady state, not an error.
type TimeQuality struct {
	Stratum       int     `json:"stratum"`
	OffsetSeconds float64 `json:"offset_seconds"`
	ReferenceID   string  `json:"reference_id"`
	LeapStatus    string  `json:"leap_status"`
}

// Leap status values spelled the way chronyc prints them.
const (
	LeapNormal          = "Normal"
	LeapInsertSecond    = "Insert second"
	LeapDeleteSecond    = "Delete second"
	LeapNotSynchronised = "Not synchronised"
)

var leapDesc = [4]string{
	LeapNormal,
	LeapInsertSecond,
	LeapDeleteSecond,
	LeapNotSynchronised,
}

// LeapToString renders chronyd's numeric leap status the way chronyc does.
func LeapToString(leap uint16) string {
	if int(leap) < len(leapDesc) {
		return leapDesc[leap]
	}
	return fmt.Sprintf("UNSUPPORTED VALUE (%d)", leap)
}

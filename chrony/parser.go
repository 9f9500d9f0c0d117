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

package chrony

import (
	"regexp"
	"strconv"
	"strings"
)

// first signed decimal number in a tracking value,
// e.g. "0.000000012 seconds slow of NTP time"
var offsetRe = regexp.MustCompile(`[-+]?\d+\.?\d*`)

// ParseTracking extracts TimeQuality from the output of `chronyc tracking`.
// The report is scanned line by line for four labeled fields ("Label : value"):
// Stratum, Reference ID, System time and Leap status. All four are mandatory;
// if any is missing or fails to parse the whole result is nil, never a
// partial TimeQuality. Unrecognized lines are ignored. This is a best-effort
// parser over chronyc's human-readable report and tracks its current format,
// not arbitrary future ones.
func ParseTracking(report string) *TimeQuality {
	var stratum *int
	var offset *float64
	var refID *string
	var leap *string

	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		value, ok := trackingValue(line)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Stratum"):
			// chronyd reports stratum as a single byte, 16 meaning unsynchronized
			if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= 255 {
				stratum = &v
			}
		case strings.HasPrefix(line, "Reference ID"):
			if id, ok := parseReferenceID(value); ok {
				refID = &id
			}
		case strings.HasPrefix(line, "System time"):
			if off, ok := parseSystemTime(value); ok {
				offset = &off
			}
		case strings.HasPrefix(line, "Leap status"):
			leap = &value
		}
	}

	if stratum == nil || offset == nil || refID == nil || leap == nil {
		return nil
	}
	return &TimeQuality{
		Stratum:       *stratum,
		OffsetSeconds: *offset,
		ReferenceID:   *refID,
		LeapStatus:    *leap,
	}
}

// trackingValue returns the trimmed part after the colon of a "Label : value" line.
func trackingValue(line string) (string, bool) {
	_, value, found := strings.Cut(line, ":")
	if !found {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// parseReferenceID handles both "C0248F82 (ntp1.example.com)" and bare
// "C0248F82" forms: the parenthesized name wins, otherwise the first token.
// An unsynchronized chronyd prints "00000000 ()", which counts as present
// with an empty name.
func parseReferenceID(value string) (string, bool) {
	if open := strings.Index(value, "("); open >= 0 {
		if end := strings.Index(value, ")"); end > open {
			return value[open+1 : end], true
		}
	}
	if fields := strings.Fields(value); len(fields) > 0 {
		return fields[0], true
	}
	return "", false
}

// parseSystemTime extracts the offset in seconds from a value like
// "0.000000012 seconds slow of NTP time". A slow clock means a negative
// offset; "fast" is left positive.
func parseSystemTime(value string) (float64, bool) {
	num := offsetRe.FindString(value)
	if num == "" {
		return 0, false
	}
	offset, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(value, "slow") {
		offset = -offset
	}
	return offset, true
}

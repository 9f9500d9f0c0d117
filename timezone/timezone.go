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

// Package timezone renders one instant in a set of IANA time zones and
// reads leap second history out of the tzdata database.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

// MaxZones bounds a single conversion request.
const MaxZones = 50

// localLayout renders wall time without a zone suffix: the zone is the map
// key, repeating it in the value would be noise.
const localLayout = "2006-01-02T15:04:05"

// ZoneInfo is the rendering of the instant in one zone.
type ZoneInfo struct {
	Local  string `json:"local"`
	Offset int    `json:"offset"`
}

// InvalidZoneError reports a name the IANA database doesn't know. The message
// is served to API clients verbatim.
type InvalidZoneError struct {
	Name string
}

func (e InvalidZoneError) Error() string {
	return fmt.Sprintf("Unrecognized time zone '%s'", e.Name)
}

// ErrTooManyZones rejects oversized conversion requests. Served to API
// clients verbatim.
var ErrTooManyZones = fmt.Errorf("Too many time zones requested (max: %d)", MaxZones)

// Convert renders now, truncated to whole seconds, in every named zone.
// Names are trimmed and empty ones discarded before the MaxZones limit
// applies. Resolution is all or nothing: the first unknown name fails the
// whole conversion and no partial map is returned. The returned epoch is the
// instant all zones were rendered at. An empty name list is a valid request
// for just the epoch.
func Convert(names []string, now time.Time) (int64, map[string]ZoneInfo, error) {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) > MaxZones {
		return 0, nil, ErrTooManyZones
	}

	instant := now.Truncate(time.Second)
	zones := make(map[string]ZoneInfo, len(cleaned))
	for _, name := range cleaned {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return 0, nil, InvalidZoneError{Name: name}
		}
		local := instant.In(loc)
		_, offset := local.Zone()
		zones[name] = ZoneInfo{
			Local:  local.Format(localLayout),
			Offset: offset,
		}
	}
	return instant.Unix(), zones, nil
}

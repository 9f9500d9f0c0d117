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

// Package health derives the service health status from the system clock
// check and the chronyd synchronization quality.
package health

import (
	"github.com/facebookincubator/timeapi/chrony"
)

// CheckState is the outcome level of a single subsystem probe.
type CheckState string

// Probe outcome levels, from best to worst.
const (
	CheckOK      CheckState = "ok"
	CheckWarning CheckState = "warning"
	CheckError   CheckState = "error"
)

// Status is the overall service health level.
type Status string

// Health levels. Degraded means serving but with reduced confidence in the
// reported time; unhealthy means the reported time cannot be trusted.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Stratum thresholds applied by Determine.
const (
	// StratumUnsynchronized is what chronyd reports when it has no
	// selected source at all.
	StratumUnsynchronized = 16
	// StratumDegraded is the first stratum considered too far from a
	// reference clock.
	StratumDegraded = 4
)

// Check is the outcome of one subsystem probe.
type Check struct {
	Status  CheckState `json:"status"`
	Message string     `json:"message,omitempty"`
}

// Checks groups the subsystem probes of one evaluation.
type Checks struct {
	SystemClock Check `json:"system_clock"`
	Chrony      Check `json:"chrony"`
}

// Response is one complete health evaluation.
type Response struct {
	Status      Status              `json:"status"`
	Timestamp   int64               `json:"timestamp"`
	Checks      Checks              `json:"checks"`
	TimeQuality *chrony.TimeQuality `json:"time_quality,omitempty"`
}

// ChronyCheck derives the chronyd probe outcome from the quality sample:
// present means chronyd answered with a parseable tracking report, absent
// means it is unreachable or gave us nothing usable.
func ChronyCheck(quality *chrony.TimeQuality) Check {
	if quality == nil {
		return Check{
			Status:  CheckWarning,
			Message: "chrony unavailable or not synchronized",
		}
	}
	return Check{Status: CheckOK}
}

// Determine folds the probe outcomes and the quality sample into the overall
// status. First match wins: a broken local clock dominates everything, a
// daemon that reports no stratum at all outranks one that is merely poorly
// synchronized.
func Determine(clock, chronyd Check, quality *chrony.TimeQuality) Status {
	if clock.Status == CheckError {
		return StatusUnhealthy
	}
	if chronyd.Status != CheckOK {
		return StatusDegraded
	}
	if quality != nil {
		if quality.Stratum >= StratumUnsynchronized {
			return StatusUnhealthy
		}
		if quality.Stratum >= StratumDegraded {
			return StatusDegraded
		}
	}
	return StatusHealthy
}

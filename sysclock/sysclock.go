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

// Package sysclock sanity-checks the system real-time clock.
package sysclock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/facebookincubator/timeapi/health"
)

// Plausibility window for CLOCK_REALTIME, inclusive on both ends. A value
// outside of it means the clock was never set (or set to nonsense) and
// nothing this service reports can be trusted.
const (
	// MinValidUnix is 2020-01-01T00:00:00Z.
	MinValidUnix int64 = 1577836800
	// MaxValidUnix is 2100-01-01T00:00:00Z.
	MaxValidUnix int64 = 4102444800
)

// Now reads CLOCK_REALTIME via the raw syscall rather than time.Now, so a
// clock that cannot be read at all surfaces as an error instead of a panic.
func Now() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return time.Time{}, fmt.Errorf("failed clock_gettime: %w", err)
	}
	return time.Unix(ts.Unix()), nil
}

// Check probes the system clock. A failed read is an error outcome, not a
// returned error: an unreadable clock is a health state to report.
func Check() health.Check {
	now, err := Now()
	if err != nil {
		return health.Check{
			Status:  health.CheckError,
			Message: fmt.Sprintf("System clock error: %v", err),
		}
	}
	return classify(now.Unix())
}

func classify(unixSec int64) health.Check {
	if unixSec < MinValidUnix || unixSec > MaxValidUnix {
		return health.Check{
			Status:  health.CheckError,
			Message: fmt.Sprintf("System clock out of range: %d", unixSec),
		}
	}
	return health.Check{Status: health.CheckOK}
}

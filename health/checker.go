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

package health

import (
	"context"
	"time"

	"github.com/facebookincubator/timeapi/chrony"
)

// QualitySource yields the latest known synchronization quality, nil when
// unknown. *chrony.Tracker implements it.
type QualitySource interface {
	Quality(ctx context.Context) *chrony.TimeQuality
}

// Checker runs one health evaluation end to end. Both collaborators are
// injected so tests can drive it without a real clock or a running chronyd.
type Checker struct {
	ClockCheck func() Check
	Source     QualitySource

	// swapped out in tests
	now func() time.Time
}

// NewChecker returns a Checker evaluating the given clock probe against the
// given quality source.
func NewChecker(clockCheck func() Check, source QualitySource) *Checker {
	return &Checker{
		ClockCheck: clockCheck,
		Source:     source,
		now:        time.Now,
	}
}

// Check performs one evaluation and reports the full outcome.
func (c *Checker) Check(ctx context.Context) Response {
	quality := c.Source.Quality(ctx)
	clock := c.ClockCheck()
	chronyd := ChronyCheck(quality)
	return Response{
		Status:      Determine(clock, chronyd, quality),
		Timestamp:   c.now().Unix(),
		Checks:      Checks{SystemClock: clock, Chrony: chronyd},
		TimeQuality: quality,
	}
}

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

package mqtt

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type heartbeatMessage struct {
	Unix int64 `json:"unix"`
}

// Heartbeat publishes the current epoch second, retained, once per second
// aligned to the whole-second boundary.
type Heartbeat struct {
	Publisher Publisher

	// both swapped out in tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHeartbeat returns a Heartbeat running on the real clock.
func NewHeartbeat(publisher Publisher) *Heartbeat {
	return &Heartbeat{
		Publisher: publisher,
		Now:       time.Now,
		Sleep:     sleepContext,
	}
}

// Run loops until ctx is canceled. Every cycle takes a fresh clock reading
// and sleeps exactly the remaining distance to the next second boundary, so
// publish latency and scheduler jitter never accumulate into drift. A failed
// publish is logged and the cadence continues.
func (h *Heartbeat) Run(ctx context.Context) error {
	log.Infof("heartbeat publisher: starting on subtopic %q", TopicHeartbeat)
	for {
		now := h.Now()
		wake := now.Truncate(time.Second).Add(time.Second)
		if err := h.Sleep(ctx, wake.Sub(now)); err != nil {
			return err
		}
		msg := heartbeatMessage{Unix: h.Now().Unix()}
		if err := h.Publisher.Publish(TopicHeartbeat, msg); err != nil {
			log.Errorf("heartbeat publisher: %v", err)
		}
	}
}

// sleepContext is time.Sleep that wakes early when ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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

	"github.com/facebookincubator/timeapi/health"
)

const (
	healthPollInterval       = time.Second
	healthMinPublishInterval = 5 * time.Second
)

// HealthChecker runs one health evaluation. *health.Checker implements it.
type HealthChecker interface {
	Check(ctx context.Context) health.Response
}

// HealthNotifier polls the health status and publishes the full evaluation,
// retained, whenever the status changes, rate-limited to one publish per
// minimum interval.
type HealthNotifier struct {
	Publisher Publisher
	Checker   HealthChecker

	// both swapped out in tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHealthNotifier returns a HealthNotifier running on the real clock.
func NewHealthNotifier(publisher Publisher, checker HealthChecker) *HealthNotifier {
	return &HealthNotifier{
		Publisher: publisher,
		Checker:   checker,
		Now:       time.Now,
		Sleep:     sleepContext,
	}
}

// Run polls once per second until ctx is canceled. The comparison runs
// against the last successfully PUBLISHED status, not the last observed one:
// a status that flips away and back inside the rate-limit window is never
// published at all. The rate-limit clock starts at loop start, so even the
// first publish waits out the minimum interval. A failed publish leaves the
// published-state bookkeeping untouched and the change retries on the next
// poll.
func (n *HealthNotifier) Run(ctx context.Context) error {
	log.Infof("health publisher: starting on subtopic %q", TopicHealthChange)
	var lastStatus health.Status
	lastPublish := n.Now()
	for {
		resp := n.Checker.Check(ctx)
		if resp.Status != lastStatus {
			if n.Now().Sub(lastPublish) >= healthMinPublishInterval {
				if err := n.Publisher.Publish(TopicHealthChange, resp); err != nil {
					log.Errorf("health publisher: %v", err)
				} else {
					log.Infof("health publisher: status %q -> %q", lastStatus, resp.Status)
					lastStatus = resp.Status
					lastPublish = n.Now()
				}
			} else {
				log.Debugf("health publisher: change to %q suppressed by rate limit", resp.Status)
			}
		}
		if err := n.Sleep(ctx, healthPollInterval); err != nil {
			return err
		}
	}
}

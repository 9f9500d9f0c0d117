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
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CacheTTL is how long a tracking sample is served before chronyd is asked
// again. Refreshing takes tens of milliseconds, so HTTP handlers and the
// background publishers share one sample per interval instead of racing to
// query the daemon.
const CacheTTL = 250 * time.Millisecond

type cachedQuality struct {
	quality    *TimeQuality
	capturedAt time.Time
}

// Tracker serves the latest known TimeQuality under a short TTL. It is safe
// for concurrent use; construct one per process and hand the same instance
// to every consumer.
type Tracker struct {
	fetcher Fetcher
	ttl     time.Duration

	mu    sync.RWMutex
	entry *cachedQuality

	// swapped out in tests
	now func() time.Time
}

// NewTracker wraps a Fetcher with a cache. A non-positive ttl means CacheTTL.
func NewTracker(fetcher Fetcher, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &Tracker{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Quality returns the cached sample when it is younger than the TTL,
// otherwise performs one fetch and stores the outcome, present or absent,
// as the new entry. Fetch failures are absorbed: the caller sees nil, which
// is the normal "unknown" state, never an error. Concurrent cache misses may
// each run their own fetch; the entry is replaced wholesale under the lock,
// so readers never see a torn update.
func (t *Tracker) Quality(ctx context.Context) *TimeQuality {
	t.mu.RLock()
	entry := t.entry
	t.mu.RUnlock()
	if entry != nil && t.now().Sub(entry.capturedAt) < t.ttl {
		return entry.quality
	}

	quality, err := t.fetcher.Fetch(ctx)
	if err != nil {
		log.Debugf("tracking refresh failed: %v", err)
		quality = nil
	}

	t.mu.Lock()
	t.entry = &cachedQuality{quality: quality, capturedAt: t.now()}
	t.mu.Unlock()

	return quality
}

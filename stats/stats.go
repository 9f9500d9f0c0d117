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

// Package stats collects the daemon's counters and serves them on the
// monitoring port as JSON and as prometheus metrics.
package stats

import (
	"sync"
)

// Stats is the daemon-wide counter map. One instance is shared by every
// component; all methods are safe for concurrent use.
type Stats struct {
	mux      sync.Mutex
	counters map[string]int64
}

// NewStats creates an empty counter map.
func NewStats() *Stats {
	return &Stats{
		counters: map[string]int64{},
	}
}

// Inc increments the counter by one.
func (s *Stats) Inc(key string) {
	s.UpdateCounterBy(key, 1)
}

// UpdateCounterBy adds count to the counter.
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter sets the counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// Get returns a snapshot copy of all counters.
func (s *Stats) Get() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// Reset sets all existing counters to 0.
func (s *Stats) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.mux.Unlock()
}

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

package stats

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

var procStartTime = time.Now()

// SysStats periodically samples process and Go runtime health into the
// counter map, so the monitoring port tells the whole story.
type SysStats struct {
	stats    *Stats
	interval time.Duration
}

// NewSysStats returns a sampler updating st every interval.
func NewSysStats(st *Stats, interval time.Duration) *SysStats {
	return &SysStats{stats: st, interval: interval}
}

// Run samples immediately, then on every tick until ctx is canceled.
func (s *SysStats) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.collect(); err != nil {
			log.Warningf("collecting process stats: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *SysStats) collect() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	s.stats.SetCounter("process.uptime", time.Now().Unix()-procStartTime.Unix())

	if val, err := proc.Percent(0); err == nil {
		s.stats.SetCounter("process.cpu_pct", int64(val*100))
	}
	if val, err := proc.MemoryInfo(); err == nil {
		s.stats.SetCounter("process.rss", int64(val.RSS))
		s.stats.SetCounter("process.vms", int64(val.VMS))
	}
	if val, err := proc.NumFDs(); err == nil {
		s.stats.SetCounter("process.num_fds", int64(val))
	}
	if val, err := proc.NumThreads(); err == nil {
		s.stats.SetCounter("process.num_threads", int64(val))
	}

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	s.stats.SetCounter("runtime.cpu.goroutines", int64(runtime.NumGoroutine()))
	s.stats.SetCounter("runtime.mem.heap.alloc", int64(m.HeapAlloc))
	s.stats.SetCounter("runtime.mem.heap.inuse", int64(m.HeapInuse))
	s.stats.SetCounter("runtime.mem.gc.count", int64(m.NumGC))
	return nil
}

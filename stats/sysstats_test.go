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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/maps"
)

var expectedSysKeys = []string{
	"process.uptime",
	"process.cpu_pct",
	"process.rss",
	"process.vms",
	"process.num_fds",
	"process.num_threads",
	"runtime.cpu.goroutines",
	"runtime.mem.heap.alloc",
	"runtime.mem.heap.inuse",
	"runtime.mem.gc.count",
}

func TestSysStatsCollect(t *testing.T) {
	st := NewStats()
	s := NewSysStats(st, time.Second)
	require.NoError(t, s.collect())

	collected := st.Get()
	require.ElementsMatch(t, expectedSysKeys, maps.Keys(collected))
	require.GreaterOrEqual(t, collected["process.uptime"], int64(0))
	require.Greater(t, collected["runtime.cpu.goroutines"], int64(0))
}

func TestSysStatsRun(t *testing.T) {
	st := NewStats()
	s := NewSysStats(st, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	require.NoError(t, s.Run(ctx))
	require.Contains(t, st.Get(), "process.rss")
}

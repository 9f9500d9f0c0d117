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

package daemon

import (
	"container/ring"
	"sync"
)

// offsetWindow keeps the most recent offset samples, guarded by mutex
type offsetWindow struct {
	sync.Mutex
	samples *ring.Ring
}

func newOffsetWindow(size int) *offsetWindow {
	w := &offsetWindow{samples: ring.New(size)}
	// init ring buffer with nils
	for i := 0; i < size; i++ {
		w.samples.Value = nil
		w.samples = w.samples.Next()
	}
	return w
}

func (w *offsetWindow) push(offsetNS float64) {
	w.Lock()
	defer w.Unlock()
	w.samples.Value = offsetNS
	w.samples = w.samples.Next()
}

// take returns up to n samples, newest first
func (w *offsetWindow) take(n int) []float64 {
	w.Lock()
	defer w.Unlock()
	if n > w.samples.Len() {
		n = w.samples.Len()
	}
	result := []float64{}
	r := w.samples.Prev()
	for j := 0; j < n; j++ {
		if r.Value == nil {
			break
		}
		result = append(result, r.Value.(float64))
		r = r.Prev()
	}
	return result
}

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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetWindowEmpty(t *testing.T) {
	w := newOffsetWindow(5)
	require.Empty(t, w.take(5))
}

func TestOffsetWindowNewestFirst(t *testing.T) {
	w := newOffsetWindow(5)
	w.push(1)
	w.push(2)
	w.push(3)
	require.Equal(t, []float64{3, 2, 1}, w.take(5))
	require.Equal(t, []float64{3, 2}, w.take(2))
}

func TestOffsetWindowWrapsAround(t *testing.T) {
	w := newOffsetWindow(3)
	for i := 1; i <= 5; i++ {
		w.push(float64(i))
	}
	// oldest two are gone
	require.Equal(t, []float64{5, 4, 3}, w.take(3))
	require.Equal(t, []float64{5, 4, 3}, w.take(10))
}

func TestOffsetWindowConcurrent(t *testing.T) {
	w := newOffsetWindow(100)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.push(float64(j))
				w.take(10)
			}
		}()
	}
	wg.Wait()
	require.Len(t, w.take(100), 100)
}

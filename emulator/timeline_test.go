// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimelineNextMonotonic(t *testing.T) {
	tl := &Timeline{}

	prev := uint64(0)
	for i := 0; i < 1000; i++ {
		v := tl.Next()
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestTimelineNextConcurrentUnique(t *testing.T) {
	tl := &Timeline{}
	const n = 500
	seen := make(chan uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- tl.Next()
		}()
	}
	wg.Wait()
	close(seen)

	values := make(map[uint64]bool, n)
	for v := range seen {
		assert.False(t, values[v], "timeline value %d issued twice", v)
		values[v] = true
	}
	assert.Len(t, values, n)
}

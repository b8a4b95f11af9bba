// SPDX-License-Identifier: MPL-2.0

package hostrt

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadOnce(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32

	load := func() (*Module, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return NewModule("m", "m.sh"), nil
	}

	const workers = 16
	results := make([]*Module, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := c.Load("m", load)
			assert.NoError(t, err)
			results[i] = m
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, m := range results {
		assert.Same(t, results[0], m)
	}

	again, err := c.Load("m", load)
	require.NoError(t, err)
	assert.Same(t, results[0], again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheDistinctNamesLoadIndependently(t *testing.T) {
	c := NewCache()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = c.Load("slow", func() (*Module, error) {
			close(started)
			<-release
			return NewModule("slow", "slow.sh"), nil
		})
	}()
	<-started

	m, err := c.Load("fast", func() (*Module, error) {
		return NewModule("fast", "fast.sh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", m.Name)
	close(release)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	c := NewCache()
	boom := errors.New("boom")

	_, err := c.Load("m", func() (*Module, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	_, ok := c.Get("m")
	assert.False(t, ok)

	m, err := c.Load("m", func() (*Module, error) { return NewModule("m", "m.sh"), nil })
	require.NoError(t, err)
	assert.Equal(t, "m", m.Name)
	assert.Equal(t, []string{"m"}, c.Names())
	assert.Equal(t, 1, c.Len())
}

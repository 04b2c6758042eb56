package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCompute_CachesUntilExpiry(t *testing.T) {
	c := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, err := c.GetOrCompute(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = c.GetOrCompute(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	v, err = c.GetOrCompute(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := New()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGetOrCompute_SharesConcurrentMisses(t *testing.T) {
	c := New()
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "shared", time.Minute, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the other callers time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestGetOrCompute_ContextCancelled(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)
	_, err := c.GetOrCompute(ctx, "k", time.Minute, func(context.Context) (any, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("tasks:u1:page=1", 1, time.Minute)
	c.Set("tasks:u1:page=2", 2, time.Minute)
	c.Set("tasks:u2:page=1", 3, time.Minute)

	assert.Equal(t, 2, c.InvalidatePrefix("tasks:u1:"))
	_, ok := c.Get("tasks:u1:page=1")
	assert.False(t, ok)
	v, ok := c.Get("tasks:u2:page=1")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestInvalidationDuringComputeDiscardsResult(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := c.GetOrCompute(context.Background(), "tasks:u1", time.Minute, func(context.Context) (any, error) {
			close(started)
			<-release
			return "stale", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "stale", v)
	}()

	<-started
	c.InvalidatePrefix("tasks:")
	close(release)
	<-done

	_, ok := c.Get("tasks:u1")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	c := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	now = now.Add(time.Minute)
	c.Purge()

	assert.Equal(t, 1, c.Len())
	c.Delete("long")
	assert.Zero(t, c.Len())
}

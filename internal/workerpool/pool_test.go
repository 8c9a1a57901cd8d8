package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/workerpool"
)

func startPool(t *testing.T, size int) *workerpool.Pool {
	t.Helper()
	pool := workerpool.New(size, nil)
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Close)
	return pool
}

func TestDoReturnsTaskResult(t *testing.T) {
	pool := startPool(t, 2)
	sentinel := errors.New("boom")

	require.NoError(t, pool.Do(context.Background(), "ok", func(context.Context) error { return nil }))
	assert.ErrorIs(t, pool.Do(context.Background(), "fail", func(context.Context) error { return sentinel }), sentinel)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 2
	pool := startPool(t, size)

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), "work", func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Equal(t, int32(size), peak.Load())
}

func TestDoHonorsContextWhileQueued(t *testing.T) {
	pool := startPool(t, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "blocker", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, "queued", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestDoWaitsForRunningTaskAfterCancel(t *testing.T) {
	pool := startPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool

	go func() {
		<-started
		cancel()
	}()
	err := pool.Do(ctx, "writer", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		// Simulates a tool flushing its output after being signalled.
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, finished.Load(), "Do returned while the task was still running")
}

func TestDoRecoversPanics(t *testing.T) {
	pool := startPool(t, 1)
	err := pool.Do(context.Background(), "panic", func(context.Context) error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	assert.NoError(t, pool.Do(context.Background(), "after", func(context.Context) error { return nil }))
}

func TestClosedPoolRejectsWork(t *testing.T) {
	pool := workerpool.New(1, nil)
	assert.ErrorIs(t, pool.Do(context.Background(), "early", func(context.Context) error { return nil }), workerpool.ErrClosed)

	require.NoError(t, pool.Start())
	assert.Error(t, pool.Start())
	pool.Close()
	pool.Close()
	assert.ErrorIs(t, pool.Do(context.Background(), "late", func(context.Context) error { return nil }), workerpool.ErrClosed)
}

func TestStats(t *testing.T) {
	pool := startPool(t, 3)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), "busy", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 1, stats.Busy)
	close(release)
}

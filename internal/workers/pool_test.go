package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiahung/remibot/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestPool_ExecutesSubmittedTasks(t *testing.T) {
	var executed atomic.Int64
	var wg sync.WaitGroup

	pool := NewPool(3, 10, func(ctx context.Context, task Task) error {
		defer wg.Done()
		executed.Add(1)
		return nil
	}, testLogger(t), nil)

	pool.Start()
	defer pool.Stop()

	const n = 9
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(Task{ID: "t", Type: "fire"}))
	}
	wg.Wait()

	assert.Equal(t, int64(n), executed.Load())
}

func TestPool_ExecutorErrorDoesNotStopWorkers(t *testing.T) {
	var calls atomic.Int64
	var wg sync.WaitGroup

	pool := NewPool(1, 10, func(ctx context.Context, task Task) error {
		defer wg.Done()
		calls.Add(1)
		return errors.New("send failed")
	}, testLogger(t), nil)

	pool.Start()
	defer pool.Stop()

	wg.Add(2)
	require.NoError(t, pool.Submit(Task{ID: "a"}))
	require.NoError(t, pool.Submit(Task{ID: "b"}))
	wg.Wait()

	assert.Equal(t, int64(2), calls.Load())
}

func TestPool_PanicRecovered(t *testing.T) {
	var wg sync.WaitGroup
	var after atomic.Bool

	pool := NewPool(1, 10, func(ctx context.Context, task Task) error {
		defer wg.Done()
		if task.Type == "boom" {
			panic("boom")
		}
		after.Store(true)
		return nil
	}, testLogger(t), nil)

	pool.Start()
	defer pool.Stop()

	wg.Add(2)
	require.NoError(t, pool.Submit(Task{ID: "a", Type: "boom"}))
	require.NoError(t, pool.Submit(Task{ID: "b", Type: "fire"}))
	wg.Wait()

	assert.True(t, after.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 1, func(ctx context.Context, task Task) error {
		return nil
	}, testLogger(t), nil)

	pool.Start()
	pool.Stop()

	err := pool.Submit(Task{ID: "late"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0, func(ctx context.Context, task Task) error { return nil }, testLogger(t), nil)
	assert.Equal(t, DefaultPoolSize, pool.WorkerCount())
	assert.Equal(t, DefaultQueueSize, cap(pool.taskQueue))
	assert.Equal(t, 0, pool.QueueSize())
}

func TestPool_StopWaitsForInflight(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	pool := NewPool(1, 1, func(ctx context.Context, task Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}, testLogger(t), nil)

	pool.Start()
	require.NoError(t, pool.Submit(Task{ID: "slow"}))
	<-started
	pool.Stop()

	assert.True(t, finished.Load())
}

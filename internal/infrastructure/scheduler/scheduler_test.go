package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopcore/stockengine/internal/infrastructure/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{Workers: 2, QueueSize: 4, JobTimeout: time.Second, LockTTL: time.Minute}
}

func startScheduler(t *testing.T, locker lock.Locker) *Scheduler {
	t.Helper()
	s, err := NewScheduler(testConfig(), locker, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func waitForRun(t *testing.T, s *Scheduler, task string) JobRun {
	t.Helper()
	var run JobRun
	require.Eventually(t, func() bool {
		var ok bool
		run, ok = s.LastRun(task)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestNewScheduler_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 0
	_, err := NewScheduler(cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_Submit(t *testing.T) {
	t.Run("runs the task", func(t *testing.T) {
		s := startScheduler(t, nil)
		var calls atomic.Int32

		_, err := s.Submit(TaskFunc{TaskName: "count", Fn: func(context.Context) error {
			calls.Add(1)
			return nil
		}})
		require.NoError(t, err)

		run := waitForRun(t, s, "count")
		assert.Equal(t, JobStatusSuccess, run.Status)
		assert.NotNil(t, run.StartedAt)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("records failures", func(t *testing.T) {
		s := startScheduler(t, nil)

		_, err := s.Submit(TaskFunc{TaskName: "broken", Fn: func(context.Context) error {
			return errors.New("db down")
		}})
		require.NoError(t, err)

		run := waitForRun(t, s, "broken")
		assert.Equal(t, JobStatusFailed, run.Status)
		assert.Equal(t, "db down", run.Error)
	})

	t.Run("job context carries the timeout", func(t *testing.T) {
		s := startScheduler(t, nil)

		_, err := s.Submit(TaskFunc{TaskName: "slow", Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}})
		require.NoError(t, err)

		run := waitForRun(t, s, "slow")
		assert.Equal(t, JobStatusFailed, run.Status)
		assert.Contains(t, run.Error, "deadline exceeded")
	})

	t.Run("skips when the lock is held elsewhere", func(t *testing.T) {
		locker := lock.NewLocalLocker()
		_, err := locker.TryLock(context.Background(), TaskExpirySweep, time.Minute)
		require.NoError(t, err)

		s := startScheduler(t, locker)
		var calls atomic.Int32
		_, err = s.Submit(TaskFunc{TaskName: TaskExpirySweep, Fn: func(context.Context) error {
			calls.Add(1)
			return nil
		}})
		require.NoError(t, err)

		run := waitForRun(t, s, TaskExpirySweep)
		assert.Equal(t, JobStatusSkipped, run.Status)
		assert.Zero(t, calls.Load())
	})

	t.Run("releases the lock after the run", func(t *testing.T) {
		locker := lock.NewLocalLocker()
		s := startScheduler(t, locker)

		_, err := s.Submit(TaskFunc{TaskName: "once", Fn: func(context.Context) error { return nil }})
		require.NoError(t, err)
		waitForRun(t, s, "once")

		require.Eventually(t, func() bool {
			release, err := locker.TryLock(context.Background(), "once", time.Minute)
			if err != nil {
				return false
			}
			_ = release(context.Background())
			return true
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("refused when stopped", func(t *testing.T) {
		s, err := NewScheduler(testConfig(), nil, zap.NewNop())
		require.NoError(t, err)

		_, err = s.Submit(TaskFunc{TaskName: "x", Fn: func(context.Context) error { return nil }})
		assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	})

	t.Run("queue full", func(t *testing.T) {
		cfg := Config{Workers: 1, QueueSize: 1, JobTimeout: time.Second, LockTTL: time.Minute}
		s, err := NewScheduler(cfg, nil, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		block := make(chan struct{})
		defer close(block)
		blocking := TaskFunc{TaskName: "block", Fn: func(ctx context.Context) error {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil
		}}

		var lastErr error
		for i := 0; i < 5 && lastErr == nil; i++ {
			_, lastErr = s.Submit(blocking)
		}
		assert.ErrorIs(t, lastErr, ErrJobQueueFull)
	})
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s, err := NewScheduler(testConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

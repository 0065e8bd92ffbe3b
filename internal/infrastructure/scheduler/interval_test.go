package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"NewsAgent/internal/infrastructure/lock"
	"NewsAgent/internal/logging"
	"NewsAgent/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	s := NewIntervalScheduler(nil, false, logging.Discard())

	var runs atomic.Int32
	release := make(chan struct{})
	job := ports.Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}}
	s.Add(job)

	ctx := context.Background()
	s.trigger(ctx, job)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.trigger(ctx, job)
	s.trigger(ctx, job)
	close(release)
	s.wg.Wait()
	assert.Equal(t, int32(1), runs.Load())

	s.trigger(ctx, job)
	s.wg.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestRunOnceHonoursLock(t *testing.T) {
	held := lock.NewLocalLock()
	releaseHeld, ok, err := held.TryAcquire(context.Background(), "newsagent:job:fetch-rss", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s := NewIntervalScheduler(held, false, logging.Discard())
	var runs atomic.Int32
	job := ports.Job{Name: "fetch-rss", Interval: time.Minute, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	s.RunOnce(context.Background(), job)
	assert.Zero(t, runs.Load())

	releaseHeld()
	s.RunOnce(context.Background(), job)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunOnceRecoversPanicsAndErrors(t *testing.T) {
	s := NewIntervalScheduler(nil, false, logging.Discard())
	assert.NotPanics(t, func() {
		s.RunOnce(context.Background(), ports.Job{Name: "boom", Interval: time.Minute, Run: func(context.Context) error {
			panic("kaboom")
		}})
		s.RunOnce(context.Background(), ports.Job{Name: "err", Interval: time.Minute, Run: func(context.Context) error {
			return errors.New("feed down")
		}})
	})
}

func TestStartRunsOnStartAndStops(t *testing.T) {
	s := NewIntervalScheduler(nil, true, logging.Discard())

	var runs atomic.Int32
	s.Add(ports.Job{Name: "tick", Interval: 20 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	s.Add(ports.Job{Name: "broken", Interval: 0, Run: func(context.Context) error { return nil }})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestLockTTL(t *testing.T) {
	assert.Equal(t, time.Minute, lockTTL(10*time.Second))
	assert.Equal(t, time.Hour, lockTTL(30*time.Minute))
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_RegisterTask(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{
		ID:   "noop",
		Name: "No-op",
		Cron: "*/5 * * * *",
		Func: func(context.Context) error { return nil },
	})
	require.NoError(t, err)

	err = s.RegisterTask(TaskConfig{
		ID:   "noop",
		Cron: "*/5 * * * *",
		Func: func(context.Context) error { return nil },
	})
	assert.Error(t, err, "duplicate id")

	err = s.RegisterTask(TaskConfig{
		ID:   "bad-cron",
		Cron: "not a cron",
		Func: func(context.Context) error { return nil },
	})
	assert.Error(t, err)

	err = s.RegisterTask(TaskConfig{ID: "nofunc", Cron: "*/5 * * * *"})
	assert.Error(t, err)

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "noop", tasks[0].ID)
}

func TestScheduler_RegisterTaskDefaultsNameToID(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "unnamed",
		Cron: "*/5 * * * *",
		Func: func(context.Context) error { return nil },
	}))

	info, err := s.GetTask("unnamed")
	require.NoError(t, err)
	assert.Equal(t, "unnamed", info.Name)
}

func TestScheduler_RunNowRecordsOutcome(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()

	boom := errors.New("boom")
	var calls atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "failing",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			calls.Add(1)
			return boom
		},
	}))

	require.NoError(t, s.RunNow("failing"))
	require.Eventually(t, func() bool {
		info, err := s.GetTask("failing")
		return err == nil && info.Runs == 1 && !info.Running
	}, time.Second, 5*time.Millisecond)

	info, err := s.GetTask("failing")
	require.NoError(t, err)
	assert.Equal(t, "boom", info.LastError)
	assert.NotNil(t, info.LastRun)
	assert.NotNil(t, info.NextRun)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_RunNowUnknownTask(t *testing.T) {
	s := newTestScheduler(t)
	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)

	_, err := s.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestScheduler_RunNowWhileRunning(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "busy",
		Cron: "0 0 1 1 *",
		Func: func(context.Context) error {
			<-release
			return nil
		},
	}))

	require.NoError(t, s.RunNow("busy"))
	assert.ErrorIs(t, s.RunNow("busy"), ErrTaskRunning)

	close(release)
	require.Eventually(t, func() bool {
		info, err := s.GetTask("busy")
		return err == nil && info.Runs == 1 && !info.Running
	}, time.Second, 5*time.Millisecond)

	info, err := s.GetTask("busy")
	require.NoError(t, err)
	assert.NotEmpty(t, info.LastElapsed)
	assert.Empty(t, info.LastError)
}

func TestScheduler_RunOnStart(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{}, 1)
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "startup",
		Cron:       "0 0 1 1 *",
		RunOnStart: true,
		Func: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	s.Start()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("RunOnStart task did not run")
	}
}

func TestScheduler_StopCancelsRunningTask(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	s.Start()

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "blocking",
		Cron: "0 0 1 1 *",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		},
	}))

	require.NoError(t, s.RunNow("blocking"))
	<-started

	require.NoError(t, s.Stop())
	assert.True(t, sawCancel.Load())
}

func TestScheduler_TaskTimeout(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:      "slow",
		Cron:    "0 0 1 1 *",
		Timeout: 20 * time.Millisecond,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	require.NoError(t, s.RunNow("slow"))
	require.Eventually(t, func() bool {
		info, err := s.GetTask("slow")
		return err == nil && info.Runs == 1
	}, time.Second, 5*time.Millisecond)

	info, err := s.GetTask("slow")
	require.NoError(t, err)
	assert.Contains(t, info.LastError, "deadline exceeded")
}

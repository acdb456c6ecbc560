package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestInlineDispatcherIsolatesTaskFailures(t *testing.T) {
	var ran []string
	tasks := []RewardTask{
		{Name: "panics", Run: func(context.Context) error { panic("boom") }},
		{Name: "fails", Run: func(context.Context) error { ran = append(ran, "fails"); return errors.New("db down") }},
		{Name: "ok", Run: func(context.Context) error { ran = append(ran, "ok"); return nil }},
	}

	assert.NotPanics(t, func() {
		InlineDispatcher{}.Dispatch(context.Background(), tasks...)
	})
	assert.Equal(t, []string{"fails", "ok"}, ran)
}

func TestRewardTaskOutlivesRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var taskErr error
	InlineDispatcher{Timeout: time.Second}.Dispatch(ctx, RewardTask{
		Name: "ctx",
		Run: func(ctx context.Context) error {
			taskErr = ctx.Err()
			return nil
		},
	})
	assert.NoError(t, taskErr)
}

func TestRewardTaskTimeout(t *testing.T) {
	err := runRewardTask(context.Background(), RewardTask{
		Name: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAsyncDispatcherRunsTasksAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewAsyncDispatcher(3, 16, time.Second)
	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		d.Dispatch(context.Background(), RewardTask{
			Name: "count",
			Run: func(context.Context) error {
				defer wg.Done()
				count.Add(1)
				return nil
			},
		})
	}
	wg.Wait()
	assert.EqualValues(t, 10, count.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	// 重复 Stop 不会 panic
	require.NoError(t, d.Stop(ctx))
}

func TestAsyncDispatcherSurvivesPanics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewAsyncDispatcher(1, 4, time.Second)
	done := make(chan struct{})
	d.Dispatch(context.Background(),
		RewardTask{Name: "panics", Run: func(context.Context) error { panic("boom") }},
		RewardTask{Name: "after", Run: func(context.Context) error { close(done); return nil }},
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic never ran")
	}
	require.NoError(t, d.Stop(context.Background()))
}

func TestAsyncDispatcherDropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewAsyncDispatcher(1, 1, time.Second)
	release := make(chan struct{})
	started := make(chan struct{})
	var ran atomic.Int32

	d.Dispatch(context.Background(), RewardTask{Name: "blocker", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	begin := time.Now()
	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), RewardTask{Name: "queued", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}})
	}
	assert.Less(t, time.Since(begin), time.Second, "dispatch must not block")

	close(release)
	require.NoError(t, d.Stop(context.Background()))
	assert.EqualValues(t, 1, ran.Load())
}

func TestAsyncDispatcherDropsAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewAsyncDispatcher(2, 4, time.Second)
	require.NoError(t, d.Stop(context.Background()))

	var ran atomic.Bool
	d.Dispatch(context.Background(), RewardTask{Name: "late", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	assert.False(t, ran.Load())
}

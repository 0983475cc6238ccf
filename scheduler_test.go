package crosswing

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunOnceSchedulesNothing(t *testing.T) {
	scheduler := NewDefaultRunScheduler(10*time.Millisecond, true, log.New())

	callCount := 0
	scheduler.RegisterCallback(func() error {
		callCount++
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))

	// In run-once mode the single run is driven by the caller, not the
	// scheduler; no periodic goroutine may fire.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, callCount)
	assert.True(t, scheduler.Stopped())
}

func TestSchedulerPeriodic(t *testing.T) {
	scheduler := NewDefaultRunScheduler(10*time.Millisecond, false, log.New())

	callChan := make(chan struct{}, 10)
	scheduler.RegisterCallback(func() error {
		callChan <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))
	assert.False(t, scheduler.Stopped())

	for i := 0; i < 3; i++ {
		select {
		case <-callChan:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for callback execution %d", i+1)
		}
	}

	require.NoError(t, scheduler.Stop())
	assert.True(t, scheduler.Stopped())
	require.NoError(t, scheduler.WaitForShutdown(ctx))
}

func TestSchedulerNoCallback(t *testing.T) {
	scheduler := NewDefaultRunScheduler(10*time.Millisecond, false, log.New())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no callback registered")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	scheduler := NewDefaultRunScheduler(10*time.Millisecond, false, log.New())
	scheduler.RegisterCallback(func() error { return nil })

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.Stop())
}

func TestSchedulerContextCancelStops(t *testing.T) {
	scheduler := NewDefaultRunScheduler(5*time.Millisecond, false, log.New())
	scheduler.RegisterCallback(func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, scheduler.WaitForShutdown(waitCtx))
	assert.True(t, scheduler.Stopped())
}

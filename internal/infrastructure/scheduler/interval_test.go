package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunGuardedDropsOverlappingTick(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Minute, slog.Default())

	var calls atomic.Int32
	block := make(chan struct{})
	job := func(time.Time) {
		calls.Add(1)
		<-block
	}

	go s.runGuarded(job, time.Now())
	require.Eventually(t, func() bool { return s.inFlight.Load() }, time.Second, time.Millisecond)

	// A tick arriving mid-run must be dropped, not queued.
	s.runGuarded(job, time.Now())
	require.Equal(t, int32(1), calls.Load())
	close(block)
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour, slog.Default())

	var calls atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { calls.Add(1) }))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

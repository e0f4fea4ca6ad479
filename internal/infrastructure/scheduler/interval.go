package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/taoi11/somenewsfound/internal/ports"
)

// IntervalScheduler triggers the pipeline on a fixed interval. A tick that
// arrives while the previous run is still going is dropped, so runs against
// the same tables never overlap.
type IntervalScheduler struct {
	interval time.Duration
	logger   *slog.Logger
	inFlight atomic.Bool
	stop     chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler with the configured period.
func NewIntervalScheduler(interval time.Duration, logger *slog.Logger) *IntervalScheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntervalScheduler{interval: interval, logger: logger}
}

// Start runs the job immediately and then on every tick until the context is
// cancelled or Stop is called.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.runGuarded(job, time.Now())
		for {
			select {
			case t := <-ticker.C:
				s.runGuarded(job, t)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

func (s *IntervalScheduler) runGuarded(job func(time.Time), t time.Time) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)
	job(t)
}

// Stop halts the ticker goroutine.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}

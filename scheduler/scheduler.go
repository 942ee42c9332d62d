// Package scheduler runs reconciliation passes in the background on a fixed
// interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/hippodash/config"
	"github.com/padraicbc/hippodash/normalize"
	"github.com/padraicbc/hippodash/reconcile"
)

// MinInterval is the shortest allowed gap between scheduled passes.
const MinInterval = config.MinSyncInterval

// Runner executes one reconciliation pass.
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error)
}

// Scheduler triggers a pass for the current day on every tick. Scheduled
// passes never create races.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	venue    string
	logger   *zap.Logger

	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// New returns a Scheduler. Intervals below MinInterval are raised to it.
func New(runner Runner, interval time.Duration, venue string, logger *zap.Logger) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		venue:    venue,
		logger:   logger.Named("scheduler"),
		now:      func() time.Time { return time.Now().UTC() },
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Interval reports the effective interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run performs a pass immediately and then one per tick until ctx is done.
// A failed pass is logged and the loop carries on. A tick that fires while a
// pass is still running is dropped by the ticker.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("sync scheduler started",
		zap.Duration("interval", s.interval),
		zap.String("venue", s.venue),
	)

	s.tick(ctx)

	ticks, stop := s.newTicker(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return ctx.Err()
		case <-ticks:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
	}
}

// RunOnce performs a single pass for today. A panic inside the pass is
// returned as an error.
func (s *Scheduler) RunOnce(ctx context.Context) (rep *reconcile.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("scheduler: sync panicked: %v", r)
		}
	}()

	opts := reconcile.Options{
		Date:       normalize.Day(s.now()),
		Venue:      s.venue,
		AutoCreate: false,
	}
	return s.runner.Run(ctx, opts)
}

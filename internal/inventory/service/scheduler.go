package service

import (
	"context"
	"fmt"
	"time"

	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Default cron specs for the alert jobs.
const (
	DefaultSweepSchedule = "@every 5m"
	DefaultPruneSchedule = "@every 30m"
)

// SchedulerOptions holds the cron specs of the periodic alert jobs.
type SchedulerOptions struct {
	SweepSchedule string
	PruneSchedule string
}

// AlertScheduler runs the periodic alert jobs of the reorder monitor: the
// sweep that resolves cleared alerts and the throttle prune.
type AlertScheduler struct {
	monitor *ReorderMonitor
	cron    *cron.Cron
	opts    SchedulerOptions
	logger  *logger.Logger
	cancel  context.CancelFunc
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(monitor *ReorderMonitor, opts SchedulerOptions, log *logger.Logger) *AlertScheduler {
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = DefaultSweepSchedule
	}
	if opts.PruneSchedule == "" {
		opts.PruneSchedule = DefaultPruneSchedule
	}
	return &AlertScheduler{
		monitor: monitor,
		cron:    cron.New(),
		opts:    opts,
		logger:  log.WithComponent("alert_scheduler"),
	}
}

// Start registers the jobs and starts the cron runner. Jobs run with ctx
// until Stop is called.
func (s *AlertScheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.opts.SweepSchedule, func() { s.RunSweep(ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.opts.SweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.opts.PruneSchedule, s.RunPrune); err != nil {
		s.cancel()
		return fmt.Errorf("invalid prune schedule %q: %w", s.opts.PruneSchedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("sweep_schedule", s.opts.SweepSchedule).
		Str("prune_schedule", s.opts.PruneSchedule).
		Msg("alert scheduler started")
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("alert scheduler stopped")
}

// RunSweep resolves alerts whose cells have recovered.
func (s *AlertScheduler) RunSweep(ctx context.Context) {
	start := time.Now()
	resolved, err := s.monitor.SweepResolved(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("alert sweep failed")
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("resolved", resolved).
		Msg("alert sweep completed")
}

// RunPrune drops expired throttle entries.
func (s *AlertScheduler) RunPrune() {
	removed := s.monitor.PruneThrottle()
	s.logger.Debug().
		Int("removed", removed).
		Int("remaining", s.monitor.ThrottleSize()).
		Msg("reorder throttle pruned")
}

// Package scheduler drives the periodic maintenance work: reserve
// polling and the lifecycle sweep.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"raydium-pool-watch/internal/lifecycle"
	"raydium-pool-watch/internal/reserves"
)

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron    *cron.Cron
	tracker *lifecycle.Tracker
	monitor *reserves.Monitor
	logger  *zap.Logger
	ctx     context.Context
}

// New creates a scheduler. Specs use six-field cron expressions with a
// seconds column.
func New(ctx context.Context, tracker *lifecycle.Tracker, monitor *reserves.Monitor, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	// A poll stretched by vault warm-up retries must not stack new
	// runs behind it; overlapping ticks are skipped.
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		tracker: tracker,
		monitor: monitor,
		logger:  logger.Named("scheduler"),
		ctx:     ctx,
	}
}

// Register registers the reserve poll and lifecycle sweep tasks.
func (s *Scheduler) Register(pollSpec, sweepSpec string) error {
	if _, err := s.cron.AddFunc(pollSpec, s.pollTask); err != nil {
		return fmt.Errorf("register poll task: %w", err)
	}
	if _, err := s.cron.AddFunc(sweepSpec, s.sweepTask); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunPollNow executes the reserve poll immediately.
func (s *Scheduler) RunPollNow() {
	s.pollTask()
}

func (s *Scheduler) pollTask() {
	if s.monitor == nil {
		return
	}
	s.monitor.Poll(s.ctx)
}

func (s *Scheduler) sweepTask() {
	if s.tracker == nil {
		return
	}
	s.tracker.Sweep()
	s.logger.Debug("sweep completed", zap.Int("tracked", s.tracker.Len()))
}

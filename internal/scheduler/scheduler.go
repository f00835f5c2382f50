package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the cron executor holding per-user triggers and global jobs.
type Scheduler struct {
	exec *CronExecutor
	jobs *Jobs
	log  *zap.Logger
}

// New creates a new Scheduler.
func New(exec *CronExecutor, jobs *Jobs, log *zap.Logger) *Scheduler {
	return &Scheduler{exec: exec, jobs: jobs, log: log}
}

// Run installs the global jobs and runs the executor until ctx is canceled.
// Running jobs get up to ten seconds to finish on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.exec.AddFunc(WeighInSpec, func() { s.jobs.WeeklyWeighIn(ctx) }); err != nil {
		return err
	}
	if _, err := s.exec.AddFunc(MonthlyReportSpec, func() { s.jobs.MonthlyReports(ctx) }); err != nil {
		return err
	}

	s.exec.Start()
	s.log.Info("scheduler started", zap.Int("rules", s.exec.Len()))

	<-ctx.Done()
	s.log.Info("scheduler stopping")

	select {
	case <-s.exec.Stop().Done():
	case <-time.After(10 * time.Second):
		s.log.Warn("scheduler stop timed out")
	}
	return nil
}

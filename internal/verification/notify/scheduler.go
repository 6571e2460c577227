package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic task. It reports how many items it handled.
type Job func(ctx context.Context) (int, error)

// Scheduler runs periodic jobs on cron schedules. A job still running when
// its next tick arrives is skipped rather than stacked.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

func NewScheduler(logger *slog.Logger, jobTimeout time.Duration) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		logger:  logger,
		timeout: jobTimeout,
	}
}

// Add registers job under name on spec (standard five-field or "@every 1m").
// Jobs run with ctx as parent once Run has started.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		start := time.Now()
		n, err := job(jobCtx)
		if err != nil {
			s.logger.ErrorContext(jobCtx, "scheduled job failed",
				"job", name,
				"error", err,
			)
			return
		}
		if n > 0 {
			s.logger.InfoContext(jobCtx, "scheduled job completed",
				"job", name,
				"handled", n,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	return nil
}

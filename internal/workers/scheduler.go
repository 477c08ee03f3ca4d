// Package workers runs the optional background jobs described in §5:
// the ACK-TTL escalation scanner, the reservation-expiry sweep, a
// Prometheus metrics snapshot emitter, and a filesystem drift watcher over
// each project's claims/ directory.
package workers

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is a periodic background task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Scheduler runs a fixed set of Jobs on independent tickers until its
// context is cancelled, then waits for all of them to unwind cleanly.
type Scheduler struct {
	logger *slog.Logger
	jobs   []scheduledJob
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// AddJob registers job to run every interval once Run is called.
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
}

// Run blocks until ctx is cancelled, running every registered job on its
// own ticker via an errgroup so a single job's goroutine can't leak past
// shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sj := range s.jobs {
		sj := sj
		g.Go(func() error {
			s.logger.Info("starting scheduled job", "job", sj.job.Name(), "interval", sj.interval)
			ticker := time.NewTicker(sj.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := sj.job.Run(ctx); err != nil {
						s.logger.Error("scheduled job failed", "job", sj.job.Name(), "error", err)
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applog "github.com/diewo77/invoice-analytics/internal/log"
)

const jobTimeout = 2 * time.Minute

// Refresher recomputes cached data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler wraps a cron runner. Jobs never overlap with themselves.
type Scheduler struct {
	cron *cron.Cron
	log  *applog.Logger
	jobs int
}

func NewScheduler(loc *time.Location, log *applog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log.WithComponent(applog.ComponentJobs),
	}
}

// AddJob schedules fn under name. Each run gets its own timeout and is logged.
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.Error("job failed", "job", name, applog.FieldError, err)
			return
		}
		s.log.Debug("job completed", "job", name, applog.FieldDuration, time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs++
	s.log.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// RegisterCacheRefresh schedules r.Refresh. An empty spec disables the job.
func (s *Scheduler) RegisterCacheRefresh(spec string, r Refresher) error {
	if spec == "" {
		s.log.Info("cache refresh disabled")
		return nil
	}
	return s.AddJob("cache-refresh", spec, r.Refresh)
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return s.jobs }

func (s *Scheduler) Start() {
	if s.jobs == 0 {
		return
	}
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("jobs still running at shutdown")
	}
}

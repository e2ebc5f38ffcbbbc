package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
)

// Job is a periodic background task. A job with a zero interval never runs.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type SchedulerEngine struct {
	jobs   []Job
	logger primary.Logger
	wg     sync.WaitGroup
}

func NewSchedulerEngine(logger primary.Logger, jobs ...Job) *SchedulerEngine {
	return &SchedulerEngine{
		jobs:   jobs,
		logger: logger,
	}
}

// StartJobScheduleEngine starts one ticker loop per job. Runs of a job never
// overlap; a run that outlasts its interval delays the next tick.
func (s *SchedulerEngine) StartJobScheduleEngine(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Info("Background job disabled", "job", job.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

func (s *SchedulerEngine) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("Background job started", "job", job.Name, "interval", job.Interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Background job failed", "job", job.Name, "error", err)
			}
		}
	}
}

// Wait blocks until every loop returned after ctx was cancelled
func (s *SchedulerEngine) Wait() {
	s.wg.Wait()
}

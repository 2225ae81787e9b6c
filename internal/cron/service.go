package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service ticks on Interval and runs each registered job whose lock it can
// claim. Every-tick jobs release their lock when done. Periodic jobs keep it
// after a success so the key blocks reruns until the period ends.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	ran := 0
	for _, schedule := range s.registry.Schedules() {
		if ctx.Err() != nil {
			return
		}
		if s.runScheduled(ctx, schedule) {
			ran++
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "jobs_run", ran), "cron tick complete")
}

// runScheduled reports whether the job ran on this instance.
func (s *Service) runScheduled(ctx context.Context, schedule Schedule) bool {
	name := schedule.Job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	claimed, err := s.lock.Acquire(ctx, name, schedule.Every)
	if err != nil {
		s.logg.Error(jobCtx, "job lock acquire failed", err)
		s.recordFailure(name)
		return false
	}
	if !claimed {
		s.logg.Debug(jobCtx, "job claimed elsewhere or ran this period; skipping")
		return false
	}

	err = s.runJob(jobCtx, schedule.Job)
	if err != nil || schedule.Every == 0 {
		if relErr := s.lock.Release(ctx, name); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}
	return true
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	s.logg.Info(ctx, "job start")
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.recordFailure(job.Name())
		return err
	}
	s.logg.Info(ctx, "job completed")
	s.recordSuccess(job.Name())
	return nil
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}

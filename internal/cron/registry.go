package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with its cadence. A zero Every runs the job on every
// worker tick; a positive Every runs it at most once per period across all
// worker instances.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry holds the storefront's scheduled jobs in registration order.
type Registry struct {
	schedules []Schedule
}

// NewRegistry registers each job to run on every tick.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job, 0)
	}
	return registry
}

// Register adds a job with its cadence. Nil jobs are ignored and negative
// periods are treated as every tick.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	if every < 0 {
		every = 0
	}
	r.schedules = append(r.schedules, Schedule{Job: job, Every: every})
}

// Schedules returns a copy of the registered schedules.
func (r *Registry) Schedules() []Schedule {
	out := make([]Schedule, len(r.schedules))
	copy(out, r.schedules)
	return out
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.schedules))
	for _, schedule := range r.schedules {
		jobs = append(jobs, schedule.Job)
	}
	return jobs
}

package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCadence(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "payment-reconciliation"}, nil)
	registry.Register(&stubJob{name: "guest-cart-cleanup"}, time.Hour)
	registry.Register(&stubJob{name: "outbox-retention"}, -time.Minute)
	registry.Register(nil, time.Hour)

	schedules := registry.Schedules()
	if len(schedules) != 3 {
		t.Fatalf("expected 3 schedules, got %d", len(schedules))
	}
	if schedules[0].Job.Name() != "payment-reconciliation" || schedules[0].Every != 0 {
		t.Fatalf("unexpected first schedule %+v", schedules[0])
	}
	if schedules[1].Every != time.Hour {
		t.Fatalf("expected hourly cleanup, got %s", schedules[1].Every)
	}
	if schedules[2].Every != 0 {
		t.Fatalf("negative cadence should run every tick, got %s", schedules[2].Every)
	}

	schedules[0].Job = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

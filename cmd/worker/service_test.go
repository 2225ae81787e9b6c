package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type stubRunner struct {
	name string
	err  error
}

func (s stubRunner) Name() string { return s.name }

func (s stubRunner) Run(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("unreachable") }

func testService(deps map[string]pinger, runners ...runner) *Service {
	return &Service{
		logg:      logger.New(logger.Options{ServiceName: "worker-test"}),
		deps:      deps,
		consumers: runners,
	}
}

func TestRunStopsWhenOneConsumerFails(t *testing.T) {
	svc := testService(map[string]pinger{"db": okPinger{}},
		stubRunner{name: "fulfillment"},
		stubRunner{name: "analytics", err: errors.New("subscription deleted")},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := svc.Run(ctx)
	if err == nil || err.Error() != "analytics: subscription deleted" {
		t.Fatalf("expected analytics failure, got %v", err)
	}
}

func TestRunReturnsCanceledOnShutdown(t *testing.T) {
	svc := testService(map[string]pinger{"db": okPinger{}}, stubRunner{name: "notifications"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRunFailsFastOnUnreadyDependency(t *testing.T) {
	svc := testService(map[string]pinger{"redis": failingPinger{}}, stubRunner{name: "fulfillment"})

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "worker-test"}),
		DB:     okPinger{},
		Redis:  okPinger{},
		PubSub: okPinger{},
	})
	if err == nil {
		t.Fatal("expected error without consumers")
	}
}

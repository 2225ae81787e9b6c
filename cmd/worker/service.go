package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/smokeshop-backend/internal/consumers"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	PubSub    pinger
	BigQuery  pinger
	Consumers []*consumers.Consumer
}

// Service runs every outbox consumer until one fails or ctx ends.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers []runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}

	deps := map[string]pinger{
		"database": params.DB,
		"redis":    params.Redis,
		"pubsub":   params.PubSub,
	}
	if params.BigQuery != nil {
		deps["bigquery"] = params.BigQuery
	}

	runners := make([]runner, 0, len(params.Consumers))
	for _, c := range params.Consumers {
		if c == nil {
			return nil, errors.New("consumer is nil")
		}
		runners = append(runners, c)
	}

	return &Service{
		logg:      params.Logger,
		deps:      deps,
		consumers: runners,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, name, dep.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, c := range s.consumers {
		c := c
		group.Go(func() error {
			runCtx := s.logg.WithField(groupCtx, "consumer", c.Name())
			s.logg.Info(runCtx, "consumer.started")
			err := c.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", c.Name(), err)
			}
			return err
		})
	}

	err := group.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}

package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mercado/internal/broker"
	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/reports"
	"mercado/pkg/bootstrap"
	"mercado/pkg/health"
	"mercado/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	publisher *broker.RabbitPublisher
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log, constants.ServiceReportAPI),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTracing(); err != nil {
		return err
	}

	metrics.RegisterReportMetrics()

	a.publisher = broker.NewRabbitPublisher(a.Config.Broker.RabbitMQ, a.Service, a.Logger)
	if err := a.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	a.Health.Register(health.NewCheckFunc("rabbitmq", a.publisher.Check))

	router := a.NewRouter(true)
	producer := reports.NewProducer(a.publisher, a.Logger)
	reports.NewSubmissionHandler(producer, a.Logger).RegisterRoutes(router)
	a.InitServer(router)

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.publisher.Run(gCtx)
	})

	g.Go(func() error {
		return a.Serve(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close error: %w", err))
		}
		return errs
	})
}

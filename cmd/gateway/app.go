package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mercado/internal/broker"
	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/notification"
	"mercado/internal/realtime"
	"mercado/pkg/bootstrap"
	"mercado/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	registry      *realtime.Registry
	relay         *notification.Relay
	kafkaConsumer *broker.KafkaConsumer
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log, constants.ServiceGateway),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTracing(); err != nil {
		return err
	}

	metrics.RegisterGatewayMetrics()

	a.registry = realtime.NewRegistry(a.Logger)
	a.relay = notification.NewRelay(a.registry, a.Config.Gateway.NotifyQueueSize, a.Logger)

	if a.Config.Broker.Kafka.Enabled {
		metrics.RegisterKafkaMetrics()
		metrics.RegisterBrokerMetrics()
		a.kafkaConsumer = broker.NewKafkaConsumer(a.Config.Broker.Kafka, a.Config.Broker.Kafka.NotificationTopic, a.Service, a.Logger)
	}

	router := a.NewRouter(true)
	realtime.NewHandler(a.registry, a.Config.Gateway, a.Logger).RegisterRoutes(router)
	notification.NewHandler(a.relay, a.Logger).RegisterRoutes(router)
	a.InitServer(router)

	a.Logger.InfowCtx(ctx, "Gateway initialized",
		"notify_queue_size", a.Config.Gateway.NotifyQueueSize,
		"kafka_ingress", a.kafkaConsumer != nil,
	)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.relay.Run(gCtx)
	})

	g.Go(func() error {
		return a.Serve(gCtx)
	})

	if a.kafkaConsumer != nil {
		g.Go(func() error {
			return a.kafkaConsumer.Consume(gCtx, a.relay.HandleKafka)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		if n := a.registry.CloseAll(); n > 0 {
			a.Logger.InfowCtx(ctx, "Closed client connections", "connections", n)
		}

		if a.kafkaConsumer != nil {
			if err := a.kafkaConsumer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("kafka consumer close error: %w", err))
			}
		}
		return errs
	})
}

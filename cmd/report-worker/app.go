package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"mercado/internal/broker"
	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/notification"
	"mercado/internal/reports"
	"mercado/internal/worker"
	"mercado/pkg/bootstrap"
	"mercado/pkg/cel"
	"mercado/pkg/circuitbreaker"
	"mercado/pkg/health"
	"mercado/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	dbConnector   *bootstrap.DatabaseConnector
	db            *sql.DB
	redis         *redis.Client
	consumer      *broker.RabbitConsumer
	kafkaProducer *broker.KafkaProducer
	worker        *worker.Worker
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceWorker),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTracing(); err != nil {
		return err
	}

	metrics.RegisterWorkerMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDatabaseMetrics()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	opts, err := a.workerOptions()
	if err != nil {
		return err
	}
	a.worker = worker.New(reports.NewRepository(a.db), a.Logger, opts...)

	a.consumer = broker.NewRabbitConsumer(a.Config.Broker.RabbitMQ, a.Service, a.Logger)
	if err := a.consumer.Connect(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	a.Health.Register(health.NewCheckFunc("rabbitmq", a.consumer.Check))

	a.InitServer(a.NewRouter(false))
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	a.dbConnector.RegisterHealth(a.Health, rdb, db)
	return nil
}

func (a *App) workerOptions() ([]worker.Option, error) {
	opts := []worker.Option{
		worker.WithMaxRedeliveries(a.Config.Worker.MaxRedeliveries),
		worker.WithRequeueBackoff(a.Config.Worker.RequeueDelay, a.Config.Worker.MaxRequeueDelay),
	}

	if a.redis != nil {
		opts = append(opts, worker.WithAttemptTracker(worker.NewRedisAttemptTracker(a.redis, constants.DefaultAttemptsTTL)))
	} else {
		a.Logger.Warnw("Redis not configured, redelivery counts are kept in memory")
	}

	if len(a.Config.Worker.Rules) > 0 {
		rules, err := cel.NewRuleSet(a.Config.Worker.Rules)
		if err != nil {
			return nil, fmt.Errorf("invalid worker rules: %w", err)
		}
		opts = append(opts, worker.WithRules(rules))
		a.Logger.Infow("Report rules loaded", "rules", rules.Len())
	}

	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
		breaker := circuitbreaker.NewWrapper(circuitbreaker.FromSettings("report-store", a.Config.CircuitBreaker))
		opts = append(opts, worker.WithBreaker(breaker))
	}

	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}
	return append(opts, worker.WithNotifier(notifier)), nil
}

func (a *App) notifier() (notification.Client, error) {
	switch a.Config.Notifier.Transport {
	case "kafka":
		if !a.Config.Broker.Kafka.Enabled {
			return nil, errors.New("notifier transport kafka requires broker.kafka.enabled")
		}
		metrics.RegisterKafkaMetrics()
		a.kafkaProducer = broker.NewKafkaProducer(a.Config.Broker.Kafka, a.Service)
		return notification.NewKafkaClient(a.kafkaProducer, a.Config.Broker.Kafka.NotificationTopic), nil
	case "http":
		if a.Config.Notifier.GatewayURL != "" {
			return notification.NewHTTPClient(a.Config.Notifier), nil
		}
	}
	a.Logger.Infow("Gateway notifications disabled")
	return notification.NopClient{}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Serve(gCtx)
	})

	g.Go(func() error {
		deliveries, err := a.consumer.Deliveries(gCtx)
		if err != nil {
			return err
		}
		if err := a.worker.Run(gCtx, deliveries); err != nil {
			return fmt.Errorf("report worker stopped: %w", err)
		}
		return nil
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

		if err := a.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}

		if a.kafkaProducer != nil {
			if err := a.kafkaProducer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("kafka producer close error: %w", err))
			}
		}

		return append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db)...)
	})
}

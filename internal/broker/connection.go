package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mercado/internal/config"
	"mercado/internal/logger"
	"mercado/pkg/metrics"
	"mercado/pkg/retry"
)

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}
}

// Dial opens an AMQP connection, retrying with exponential backoff so a
// service can start before the broker is ready.
func Dial(ctx context.Context, cfg config.RabbitMQConfig, service string, log logger.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection

	err := retry.RetryWithCallback(ctx, retryPolicy(cfg.Retry), func() error {
		c, err := amqp.DialConfig(cfg.URL(), amqp.Config{
			Heartbeat:  10 * time.Second,
			Locale:     "en_US",
			Properties: amqp.Table{"connection_name": service},
		})
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(service, "rabbitmq_dial").Inc()
		log.Warnw("RabbitMQ not reachable, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"host", cfg.Host,
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Infow("RabbitMQ connected", "host", cfg.Host, "port", cfg.Port)
	return conn, nil
}

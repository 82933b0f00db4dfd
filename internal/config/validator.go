package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mercado/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks shape and ranges of every section that is present.
// Whether a section is required at all is decided by ValidateForService.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if cfg.Database.Postgres.Host != "" {
		if err := validatePostgres(cfg.Database.Postgres); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Database.Redis.Host != "" {
		if err := validateRedis(cfg.Database.Redis); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Broker.RabbitMQ.Host != "" {
		if err := validateRabbitMQ(cfg.Broker.RabbitMQ); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Broker.Kafka.Enabled {
		if err := validateKafka(cfg.Broker.Kafka); err != nil {
			errs = append(errs, err)
		}
	}

	if err := validateNotifier(cfg.Notifier); err != nil {
		errs = append(errs, err)
	}

	if err := validateWorker(cfg.Worker); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateForService enforces the sections each binary cannot run without.
func ValidateForService(cfg *Config, service string) error {
	switch service {
	case constants.ServiceReportAPI:
		return requireRabbitMQ(cfg)
	case constants.ServiceWorker:
		if err := requireRabbitMQ(cfg); err != nil {
			return err
		}
		return requirePostgres(cfg)
	case constants.ServiceRegulator:
		return requirePostgres(cfg)
	case constants.ServiceGateway:
		if cfg.Gateway.NotifyQueueSize <= 0 {
			return &ValidationError{Field: "gateway.notify_queue_size", Message: "must be positive"}
		}
		if cfg.Gateway.ConnectionBuffer <= 0 {
			return &ValidationError{Field: "gateway.connection_buffer", Message: "must be positive"}
		}
		return nil
	default:
		return fmt.Errorf("unknown service %q", service)
	}
}

func requireRabbitMQ(cfg *Config) error {
	if cfg.Broker.RabbitMQ.Host == "" {
		return &ValidationError{Field: "broker.rabbitmq.host", Message: "RabbitMQ host is required"}
	}
	return nil
}

func requirePostgres(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return &ValidationError{Field: "database.postgres.host", Message: "PostgreSQL host is required"}
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{Field: "server.read_timeout", Message: "read timeout must be positive"}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{Field: "server.write_timeout", Message: "write timeout must be positive"}
	}

	return nil
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "broker.rabbitmq.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Queue == "" {
		return &ValidationError{Field: "broker.rabbitmq.queue", Message: "queue name is required"}
	}

	if cfg.Exchange == "" {
		return &ValidationError{Field: "broker.rabbitmq.exchange", Message: "exchange name is required"}
	}

	// the worker settles each delivery before it may receive the next one
	if cfg.Prefetch != constants.DefaultPrefetch {
		return &ValidationError{
			Field:   "broker.rabbitmq.prefetch",
			Message: fmt.Sprintf("prefetch must be %d, got %d", constants.DefaultPrefetch, cfg.Prefetch),
		}
	}

	if cfg.PublishTimeout <= 0 {
		return &ValidationError{Field: "broker.rabbitmq.publish_timeout", Message: "publish timeout must be positive"}
	}

	return validateRetry("broker.rabbitmq.retry", cfg.Retry)
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{Field: "broker.kafka.group_id", Message: "Kafka consumer group ID is required"}
	}

	if cfg.NotificationTopic == "" {
		return &ValidationError{Field: "broker.kafka.notification_topic", Message: "notification topic is required"}
	}

	return validateRetry("broker.kafka.retry", cfg.Retry)
}

func validateRetry(prefix string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{Field: prefix + ".max_attempts", Message: "max_attempts must be non-negative"}
	}

	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return &ValidationError{Field: prefix, Message: "intervals must be non-negative"}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   prefix + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{Field: prefix + ".multiplier", Message: "multiplier must be positive"}
	}

	return nil
}

func validateWorker(cfg WorkerConfig) error {
	if cfg.MaxRedeliveries < 0 {
		return &ValidationError{Field: "worker.max_redeliveries", Message: "must be non-negative"}
	}

	if cfg.RequeueDelay < 0 || cfg.MaxRequeueDelay < 0 {
		return &ValidationError{Field: "worker", Message: "requeue delays must be non-negative"}
	}

	if cfg.MaxRequeueDelay > 0 && cfg.MaxRequeueDelay < cfg.RequeueDelay {
		return &ValidationError{
			Field:   "worker.max_requeue_delay",
			Message: "max_requeue_delay must be greater than or equal to requeue_delay",
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{Field: "database.postgres.user", Message: "PostgreSQL user is required"}
	}

	if cfg.DBName == "" {
		return &ValidationError{Field: "database.postgres.dbname", Message: "PostgreSQL database name is required"}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateNotifier(cfg NotifierConfig) error {
	switch cfg.Transport {
	case "", "none", "kafka":
		return nil
	case "http":
		if cfg.GatewayURL == "" {
			return nil
		}
		u, err := url.Parse(cfg.GatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{
				Field:   "notifier.gateway_url",
				Message: fmt.Sprintf("invalid gateway URL: %q", cfg.GatewayURL),
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "notifier.transport",
			Message: fmt.Sprintf("unknown transport: %s (supported: http, kafka, none)", cfg.Transport),
		}
	}
}

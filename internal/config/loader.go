package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"mercado/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvVariables(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.redis.port", 6379)

	v.SetDefault("broker.rabbitmq.port", 5672)
	v.SetDefault("broker.rabbitmq.exchange", constants.DefaultReportExchange)
	v.SetDefault("broker.rabbitmq.queue", constants.DefaultReportQueue)
	v.SetDefault("broker.rabbitmq.routing_key", constants.DefaultReportRoutingKey)
	v.SetDefault("broker.rabbitmq.prefetch", constants.DefaultPrefetch)
	v.SetDefault("broker.rabbitmq.publish_timeout", constants.DefaultPublishTimeout)
	v.SetDefault("broker.rabbitmq.retry.max_attempts", 5)
	v.SetDefault("broker.rabbitmq.retry.initial_interval", "500ms")
	v.SetDefault("broker.rabbitmq.retry.max_interval", "10s")
	v.SetDefault("broker.rabbitmq.retry.multiplier", 2.0)

	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "1s")
	v.SetDefault("broker.kafka.retry.max_interval", "30s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("gateway.notify_queue_size", constants.DefaultNotifyQueueSize)
	v.SetDefault("gateway.connection_buffer", constants.DefaultConnectionBuffer)
	v.SetDefault("gateway.write_wait", constants.DefaultWriteWait)
	v.SetDefault("gateway.pong_wait", constants.DefaultPongWait)

	v.SetDefault("notifier.transport", "http")
	v.SetDefault("notifier.timeout", constants.DefaultHTTPTimeout)

	v.SetDefault("worker.max_redeliveries", constants.DefaultMaxRedeliveries)
	v.SetDefault("worker.requeue_delay", constants.DefaultRequeueDelay)
	v.SetDefault("worker.max_requeue_delay", constants.DefaultMaxRequeueDelay)

	v.SetDefault("rate_limit.rps", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.cleanup_interval", "5m")
	v.SetDefault("rate_limit.max_age", "10m")

	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVariables(v *viper.Viper) error {
	bindings := map[string]string{
		"database.postgres.host":     "DATABASE_POSTGRES_HOST",
		"database.postgres.port":     "DATABASE_POSTGRES_PORT",
		"database.postgres.user":     "DATABASE_POSTGRES_USER",
		"database.postgres.password": "DATABASE_POSTGRES_PASSWORD",
		"database.postgres.dbname":   "DATABASE_POSTGRES_DBNAME",
		"database.postgres.sslmode":  "DATABASE_POSTGRES_SSLMODE",

		"database.redis.host":     "DATABASE_REDIS_HOST",
		"database.redis.port":     "DATABASE_REDIS_PORT",
		"database.redis.password": "DATABASE_REDIS_PASSWORD",

		"broker.rabbitmq.host":     "BROKER_RABBITMQ_HOST",
		"broker.rabbitmq.port":     "BROKER_RABBITMQ_PORT",
		"broker.rabbitmq.user":     "BROKER_RABBITMQ_USER",
		"broker.rabbitmq.password": "BROKER_RABBITMQ_PASSWORD",
		"broker.rabbitmq.vhost":    "BROKER_RABBITMQ_VHOST",

		"broker.kafka.enabled":            "BROKER_KAFKA_ENABLED",
		"broker.kafka.group_id":           "BROKER_KAFKA_GROUP_ID",
		"broker.kafka.notification_topic": "BROKER_KAFKA_NOTIFICATION_TOPIC",

		"notifier.transport":   "NOTIFIER_TRANSPORT",
		"notifier.gateway_url": "NOTIFIER_GATEWAY_URL",

		"server.port": "SERVER_PORT",

		"logging.level":  "LOGGING_LEVEL",
		"logging.format": "LOGGING_FORMAT",

		"tracing.enabled":       "TRACING_ENABLED",
		"tracing.service_name":  "TRACING_SERVICE_NAME",
		"tracing.otlp.insecure": "TRACING_OTLP_INSECURE",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// applyEnvOverrides handles values viper cannot decode straight from a
// single environment string.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		cfg.Broker.Kafka.Brokers = splitList(brokersEnv)
	}

	if origins := v.GetString("GATEWAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.Gateway.AllowedOrigins = splitList(origins)
	}

	if otlpEndpoint := v.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

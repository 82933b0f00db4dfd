package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Gateway        GatewayConfig        `mapstructure:"gateway"`
	Notifier       NotifierConfig       `mapstructure:"notifier"`
	Worker         WorkerConfig         `mapstructure:"worker"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type BrokerConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type RabbitMQConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	VHost              string        `mapstructure:"vhost"`
	Exchange           string        `mapstructure:"exchange"`
	Queue              string        `mapstructure:"queue"`
	RoutingKey         string        `mapstructure:"routing_key"`
	DeadLetterExchange string        `mapstructure:"dead_letter_exchange"`
	DeadLetterQueue    string        `mapstructure:"dead_letter_queue"`
	Prefetch           int           `mapstructure:"prefetch"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	Retry              RetryConfig   `mapstructure:"retry"`
}

// URL renders the AMQP URI; the vhost is path-escaped so "/" becomes "%2F".
func (c RabbitMQConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.VHost != "" {
		u.Path = "/" + c.VHost
		u.RawPath = "/" + url.PathEscape(c.VHost)
	}
	return u.String()
}

type KafkaConfig struct {
	Enabled           bool        `mapstructure:"enabled"`
	Brokers           []string    `mapstructure:"brokers"`
	GroupID           string      `mapstructure:"group_id"`
	NotificationTopic string      `mapstructure:"notification_topic"`
	DLQTopic          string      `mapstructure:"dlq_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type GatewayConfig struct {
	NotifyQueueSize  int           `mapstructure:"notify_queue_size"`
	ConnectionBuffer int           `mapstructure:"connection_buffer"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
}

// NotifierConfig controls how upstream services signal the gateway.
type NotifierConfig struct {
	Transport  string        `mapstructure:"transport"` // "http" (default), "kafka" or "none"
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	MaxRedeliveries int           `mapstructure:"max_redeliveries"`
	RequeueDelay    time.Duration `mapstructure:"requeue_delay"`
	MaxRequeueDelay time.Duration `mapstructure:"max_requeue_delay"`
	Rules           []string      `mapstructure:"rules"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the file, applies environment overrides and validates the
// sections the named service depends on.
func Load(configFile, service string) (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := ValidateForService(cfg, service); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GatewayConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of registered real-time connections (count)",
		},
	)

	GatewayConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_connections_total",
			Help: "Total number of connection lifecycle events (count)",
		},
		[]string{"event"},
	)

	GatewayBroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_broadcasts_total",
			Help: "Total number of broadcast messages by type (count)",
		},
		[]string{"type"},
	)

	GatewaySendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_send_failures_total",
			Help: "Total number of per-connection send failures during broadcast (count)",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notifications handled by the relay (count)",
		},
		[]string{"type", "status"},
	)

	NotificationQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_size",
			Help: "Notifications waiting to be broadcast (count)",
		},
	)

	ReportsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_published_total",
			Help: "Total number of report envelopes handed to the broker (count)",
		},
		[]string{"status"},
	)

	ReportPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_publish_duration_ms",
			Help:    "Time from publish to broker confirm in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	WorkerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_worker_messages_total",
			Help: "Total number of deliveries handled by the report worker by outcome (count)",
		},
		[]string{"outcome"},
	)

	WorkerProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_worker_processing_duration_ms",
			Help:    "Processing duration per delivery in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"outcome"},
	)

	WorkerInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "report_worker_in_flight",
			Help: "Deliveries currently being processed (count)",
		},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to a dead-letter destination (count)",
		},
		[]string{"service", "source", "reason"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "source"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation"},
	)
)

var registerOnce = map[string]*sync.Once{
	"gateway":  {},
	"reports":  {},
	"worker":   {},
	"kafka":    {},
	"breaker":  {},
	"broker":   {},
	"http":     {},
	"database": {},
}

func once(group string, fn func()) {
	registerOnce[group].Do(fn)
}

func RegisterGatewayMetrics() {
	once("gateway", func() {
		prometheus.MustRegister(GatewayConnectionsActive)
		prometheus.MustRegister(GatewayConnectionsTotal)
		prometheus.MustRegister(GatewayBroadcastsTotal)
		prometheus.MustRegister(GatewaySendFailuresTotal)
		prometheus.MustRegister(NotificationsTotal)
		prometheus.MustRegister(NotificationQueueSize)
	})
}

func RegisterReportMetrics() {
	once("reports", func() {
		prometheus.MustRegister(ReportsPublishedTotal)
		prometheus.MustRegister(ReportPublishDuration)
	})
}

func RegisterWorkerMetrics() {
	once("worker", func() {
		prometheus.MustRegister(WorkerMessagesTotal)
		prometheus.MustRegister(WorkerProcessingDuration)
		prometheus.MustRegister(WorkerInFlight)
	})
}

func RegisterKafkaMetrics() {
	once("kafka", func() {
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
	})
}

func RegisterBrokerMetrics() {
	once("broker", func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
	})
}

func RegisterCircuitBreakerMetrics() {
	once("breaker", func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterHTTPMetrics() {
	once("http", func() {
		prometheus.MustRegister(RateLimitRequestsTotal)
	})
}

func RegisterDatabaseMetrics() {
	once("database", func() {
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func SetConnectionsActive(count int) {
	GatewayConnectionsActive.Set(float64(count))
}

func IncConnectionEvent(event string) {
	GatewayConnectionsTotal.WithLabelValues(event).Inc()
}

func IncBroadcast(msgType string) {
	GatewayBroadcastsTotal.WithLabelValues(msgType).Inc()
}

func AddSendFailures(n int) {
	GatewaySendFailuresTotal.Add(float64(n))
}

func IncNotification(eventType, status string) {
	NotificationsTotal.WithLabelValues(eventType, status).Inc()
}

func ObservePublish(status string, duration time.Duration) {
	ReportsPublishedTotal.WithLabelValues(status).Inc()
	ReportPublishDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveWorkerOutcome(outcome string, duration time.Duration) {
	WorkerMessagesTotal.WithLabelValues(outcome).Inc()
	WorkerProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveDatabaseQuery(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

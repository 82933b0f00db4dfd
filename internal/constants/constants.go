package constants

import "time"

const (
	ServiceGateway   = "gateway"
	ServiceReportAPI = "report-api"
	ServiceWorker    = "report-worker"
	ServiceRegulator = "regulator-service"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

// Broker topology shared by the report producer and the worker.
const (
	DefaultReportExchange   = "reportes"
	DefaultReportQueue      = "reportes_inconsistencia"
	DefaultReportRoutingKey = "inconsistencia"
	DefaultDeadLetterSuffix = ".dlx"
	DefaultDLQSuffix        = ".dlq"
	DefaultPrefetch         = 1
	DefaultMaxRedeliveries  = 5
	DefaultRequeueDelay     = 500 * time.Millisecond
	DefaultMaxRequeueDelay  = 10 * time.Second
	DefaultPublishTimeout   = 5 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultNotifyQueueSize   = 256
	DefaultConnectionBuffer  = 16
	DefaultWriteWait         = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultMaxInboundMessage = 4096
)

const (
	CacheKeyPrefixAttempts = "report_attempts:"
	DefaultAttemptsTTL     = 24 * time.Hour
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

package broker

import (
	"context"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgerrors "mercado/pkg/errors"
)

var (
	// ErrQueueUnavailable means there is no usable broker connection; the
	// message was not handed to the broker.
	ErrQueueUnavailable = pkgerrors.NewError("QUEUE_UNAVAILABLE", "report queue unavailable", http.StatusInternalServerError).AsRetryable()

	// ErrPublishNotConfirmed means the broker nacked the message or the
	// confirm did not arrive in time.
	ErrPublishNotConfirmed = pkgerrors.NewError("PUBLISH_NOT_CONFIRMED", "broker did not confirm the message", http.StatusInternalServerError).AsRetryable()
)

// Message is a single persistent publish.
type Message struct {
	ID        string
	Type      string
	Body      []byte
	Timestamp time.Time
	Headers   amqp.Table
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// KafkaHandlerFunc processes one Kafka record value. Returning an error
// triggers the consumer's retry policy and, once exhausted, the DLQ topic.
type KafkaHandlerFunc func(ctx context.Context, key, value []byte) error

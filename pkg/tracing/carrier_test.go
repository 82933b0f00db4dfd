package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func sampledContext(t *testing.T) (context.Context, trace.TraceID) {
	t.Helper()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), traceID
}

func TestAMQPHeaderRoundTrip(t *testing.T) {
	ctx, traceID := sampledContext(t)

	headers := InjectAMQPHeaders(ctx, nil)
	assert.Contains(t, headers, "traceparent")

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), amqpHeaderCarrier(headers))
	assert.Equal(t, traceID, trace.SpanContextFromContext(extracted).TraceID())
}

func TestKafkaHeaderRoundTrip(t *testing.T) {
	ctx, traceID := sampledContext(t)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "content-type", Value: []byte("application/json")}})
	assert.Len(t, headers, 2)

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), &kafkaHeaderCarrier{headers: headers})
	assert.Equal(t, traceID.String(), TraceID(extracted))
}

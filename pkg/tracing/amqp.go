package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// InjectAMQPHeaders writes the current trace context into the message headers,
// allocating the table when needed.
func InjectAMQPHeaders(ctx context.Context, headers amqp.Table) amqp.Table {
	if headers == nil {
		headers = amqp.Table{}
	}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))
	return headers
}

func StartSpanFromDelivery(ctx context.Context, operationName string, headers amqp.Table) (context.Context, trace.Span) {
	if headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, amqpHeaderCarrier(headers))
	}
	return Tracer().Start(ctx, operationName, trace.WithSpanKind(trace.SpanKindConsumer))
}

type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

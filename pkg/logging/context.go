package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey      contextKey = "trace_id"
	MessageIDKey    contextKey = "message_id"
	ServiceNameKey  contextKey = "service_name"
	ConnectionIDKey contextKey = "connection_id"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, connectionID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return stringValue(ctx, MessageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func GetConnectionID(ctx context.Context) string {
	return stringValue(ctx, ConnectionIDKey)
}

// GetLogFields returns the key/value pairs stored in ctx, ready to be
// prepended to a sugared logger call.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	for _, key := range []contextKey{TraceIDKey, MessageIDKey, ServiceNameKey, ConnectionIDKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}

	return fields
}

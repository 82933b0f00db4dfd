package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithMessageID(ctx, "msg-1")
	ctx = WithConnectionID(ctx, "conn-1")

	assert.Equal(t, []interface{}{"message_id", "msg-1", "connection_id", "conn-1"}, GetLogFields(ctx))
	assert.Equal(t, "", GetTraceID(ctx))
}

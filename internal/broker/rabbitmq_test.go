package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"mercado/internal/config"
	"mercado/internal/logger"
)

func TestRabbitClientsUnavailableWithoutConnection(t *testing.T) {
	cfg := config.RabbitMQConfig{Exchange: "reportes", Queue: "reportes_inconsistencia", Prefetch: 1}

	p := NewRabbitPublisher(cfg, "test", logger.NopLogger())
	assert.ErrorIs(t, p.Check(context.Background()), ErrQueueUnavailable)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{ID: "m-1"}), ErrQueueUnavailable)
	assert.Error(t, p.Run(context.Background()))
	assert.NoError(t, p.Close())

	c := NewRabbitConsumer(cfg, "test", logger.NopLogger())
	assert.ErrorIs(t, c.Check(context.Background()), ErrQueueUnavailable)
	_, err := c.Deliveries(context.Background())
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	assert.NoError(t, c.Close())
}

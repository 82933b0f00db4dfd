package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mercado/internal/config"
	"mercado/internal/logger"
)

func TestKafkaConsumerCloseStopsConsume(t *testing.T) {
	cfg := config.KafkaConfig{
		Enabled: true,
		Brokers: []string{"127.0.0.1:1"},
		GroupID: "gateway-test",
	}
	c := NewKafkaConsumer(cfg, "mercado.notificaciones", "gateway-test", logger.NopLogger())

	done := make(chan error, 1)
	go func() {
		done <- c.Consume(context.Background(), func(context.Context, []byte, []byte) error { return nil })
	}()

	// Close runs on the shutdown goroutine while Consume is still fetching.
	_ = c.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return after Close")
	}
}

//go:build integration

package broker

import (
	"context"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rabbitmqmodule "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/pkg/models"
)

func setupRabbitMQ(t *testing.T) config.RabbitMQConfig {
	t.Helper()
	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := rabbitmqmodule.Run(ctx, "rabbitmq:4.1-management-alpine")
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return config.RabbitMQConfig{
		Host:           host,
		Port:           port.Int(),
		User:           container.AdminUsername,
		Password:       container.AdminPassword,
		Exchange:       constants.DefaultReportExchange,
		Queue:          constants.DefaultReportQueue,
		RoutingKey:     constants.DefaultReportRoutingKey,
		Prefetch:       constants.DefaultPrefetch,
		PublishTimeout: constants.DefaultPublishTimeout,
		Retry: config.RetryConfig{
			MaxAttempts:     10,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
		},
	}
}

func connectPair(t *testing.T, cfg config.RabbitMQConfig) (*RabbitPublisher, *RabbitConsumer) {
	t.Helper()
	ctx := context.Background()

	p := NewRabbitPublisher(cfg, "report-api-test", logger.NopLogger())
	require.NoError(t, p.Connect(ctx))
	t.Cleanup(func() { p.Close() })

	c := NewRabbitConsumer(cfg, "report-worker-test", logger.NopLogger())
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Close() })

	return p, c
}

// inspect opens a separate channel for looking at queue state.
func inspect(t *testing.T, cfg config.RabbitMQConfig) *amqp.Channel {
	t.Helper()
	conn, err := amqp.Dial(cfg.URL())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)
	return ch
}

func receive(t *testing.T, deliveries <-chan amqp.Delivery) amqp.Delivery {
	t.Helper()
	select {
	case d := <-deliveries:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
	return amqp.Delivery{}
}

func reportMessage(id string) Message {
	return Message{
		ID:   id,
		Type: models.EnvelopeTypeInconsistency,
		Body: []byte(`{"tipo":"INCONSISTENCIA","datos":{"producto":"Leche","supermercado":"Tienda A","precio":25.5}}`),
	}
}

func TestRabbitMQPublishConsumeAck(t *testing.T) {
	cfg := setupRabbitMQ(t)
	p, c := connectPair(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Check(ctx))
	require.NoError(t, c.Check(ctx))
	require.NoError(t, p.Publish(ctx, reportMessage("m-1")))
	require.NoError(t, p.Publish(ctx, reportMessage("m-2")))

	deliveries, err := c.Deliveries(ctx)
	require.NoError(t, err)

	first := receive(t, deliveries)
	assert.Equal(t, "m-1", first.MessageId)
	assert.Equal(t, amqp.Persistent, first.DeliveryMode)
	assert.Equal(t, "application/json", first.ContentType)
	assert.Equal(t, models.EnvelopeTypeInconsistency, first.Type)

	// a prefetch of one holds the second message back until the first is settled
	select {
	case d := <-deliveries:
		t.Fatalf("received %s before acknowledging the first delivery", d.MessageId)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, first.Ack(false))
	second := receive(t, deliveries)
	assert.Equal(t, "m-2", second.MessageId)
	require.NoError(t, second.Ack(false))

	q, err := inspect(t, cfg).QueueDeclarePassive(cfg.Queue, true, false, false, false, nil)
	require.NoError(t, err)
	assert.Zero(t, q.Messages)
}

func TestRabbitMQNackWithoutRequeueDeadLetters(t *testing.T) {
	cfg := setupRabbitMQ(t)
	p, c := connectPair(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Publish(ctx, reportMessage("poison-1")))

	deliveries, err := c.Deliveries(ctx)
	require.NoError(t, err)
	d := receive(t, deliveries)
	require.NoError(t, d.Nack(false, false))

	ch := inspect(t, cfg)
	dlq := TopologyFromConfig(cfg).DeadLetterQueue
	assert.Equal(t, "reportes_inconsistencia.dlq", dlq)

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(dlq, true)
		if err != nil || !ok {
			return false
		}
		dead = msg
		return true
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "poison-1", dead.MessageId)
}

func TestRabbitMQPublisherReopensClosedChannel(t *testing.T) {
	cfg := setupRabbitMQ(t)
	p := NewRabbitPublisher(cfg, "report-api-test", logger.NopLogger())
	require.NoError(t, p.Connect(context.Background()))
	t.Cleanup(func() { p.Close() })

	// a passive declare of a missing queue makes the broker close the channel
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	_, err := ch.QueueDeclarePassive("no-such-queue", true, false, false, false, nil)
	require.Error(t, err)

	require.Eventually(t, func() bool { return p.Check(context.Background()) != nil }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, p.Publish(context.Background(), reportMessage("m-lost")), ErrQueueUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return p.Check(context.Background()) == nil }, 5*time.Second, 20*time.Millisecond)
	assert.NoError(t, p.Publish(context.Background(), reportMessage("m-after")))
}

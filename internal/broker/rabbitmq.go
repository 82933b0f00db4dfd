package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mercado/internal/config"
	"mercado/internal/logger"
	"mercado/pkg/tracing"
)

// RabbitPublisher publishes persistent messages on one shared connection and
// a confirm-mode channel. Publish never retries; when the channel or the
// connection drops, Run restores it in the background and Publish fails
// fast with ErrQueueUnavailable until it is back.
type RabbitPublisher struct {
	cfg      config.RabbitMQConfig
	topology Topology
	service  string
	logger   logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitPublisher(cfg config.RabbitMQConfig, service string, log logger.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		cfg:      cfg,
		topology: TopologyFromConfig(cfg),
		service:  service,
		logger:   log,
	}
}

func (p *RabbitPublisher) Connect(ctx context.Context) error {
	conn, err := Dial(ctx, p.cfg, p.service, p.logger)
	if err != nil {
		return err
	}

	ch, err := p.openChannel(conn)
	if err != nil {
		conn.Close()
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()
	return nil
}

func (p *RabbitPublisher) openChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := p.topology.Declare(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// Run watches the connection and the publishing channel. A channel closed by
// the broker is reopened on the live connection; a lost connection is
// redialed.
func (p *RabbitPublisher) Run(ctx context.Context) error {
	for {
		p.mu.Lock()
		conn, ch := p.conn, p.ch
		p.mu.Unlock()
		if conn == nil || ch == nil {
			return errors.New("publisher is not connected")
		}

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		var cause *amqp.Error
		select {
		case <-ctx.Done():
			return nil
		case cause = <-connClosed:
		case cause = <-chClosed:
		}

		p.logger.Warnw("RabbitMQ publisher lost its channel, recovering", "error", cause)
		if err := p.restore(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reconnect failed: %w", err)
		}
	}
}

// restore reopens the channel when the connection survived, and redials
// otherwise.
func (p *RabbitPublisher) restore(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	p.ch = nil
	p.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		ch, err := p.openChannel(conn)
		if err == nil {
			p.mu.Lock()
			p.ch = ch
			p.mu.Unlock()
			p.logger.Infow("RabbitMQ publisher channel reopened")
			return nil
		}
		p.logger.Warnw("Failed to reopen channel, redialing", "error", err)
		conn.Close()
	}

	p.mu.Lock()
	p.conn = nil
	p.mu.Unlock()
	return p.Connect(ctx)
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		return ErrQueueUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx,
		p.topology.Exchange,
		p.topology.RoutingKey,
		false,
		false,
		amqp.Publishing{
			Headers:      tracing.InjectAMQPHeaders(ctx, msg.Headers),
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Type:         msg.Type,
			AppId:        p.service,
			Body:         msg.Body,
		},
	)
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return ErrQueueUnavailable.WithCause(err)
		}
		return ErrPublishNotConfirmed.WithCause(err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return ErrPublishNotConfirmed.WithCause(err)
	}
	if !acked {
		return ErrPublishNotConfirmed.WithDetail("message_id", msg.ID)
	}
	return nil
}

// Check reports whether a publish would currently be attempted.
func (p *RabbitPublisher) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		return ErrQueueUnavailable
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// RabbitConsumer owns the worker's channel. Prefetch bounds the number of
// unacknowledged deliveries the broker will push at once.
type RabbitConsumer struct {
	cfg      config.RabbitMQConfig
	topology Topology
	service  string
	logger   logger.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitConsumer(cfg config.RabbitMQConfig, service string, log logger.Logger) *RabbitConsumer {
	return &RabbitConsumer{
		cfg:      cfg,
		topology: TopologyFromConfig(cfg),
		service:  service,
		logger:   log,
	}
}

func (c *RabbitConsumer) Connect(ctx context.Context) error {
	conn, err := Dial(ctx, c.cfg, c.service, c.logger)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	if err := c.topology.Declare(ch); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// Deliveries starts a manual-ack consumer on the report queue. The returned
// channel closes when ctx is cancelled or the broker connection is lost.
func (c *RabbitConsumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	if c.ch == nil {
		return nil, ErrQueueUnavailable
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx,
		c.topology.Queue,
		c.service,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", c.topology.Queue, err)
	}

	c.logger.Infow("Consuming reports",
		"queue", c.topology.Queue,
		"prefetch", c.cfg.Prefetch,
		"dead_letter_queue", c.topology.DeadLetterQueue,
	)
	return deliveries, nil
}

func (c *RabbitConsumer) Check(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() || c.ch == nil || c.ch.IsClosed() {
		return ErrQueueUnavailable
	}
	return nil
}

// Close closes the channel first so unacknowledged deliveries are returned
// to the queue, then the connection.
func (c *RabbitConsumer) Close() error {
	var errs []error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

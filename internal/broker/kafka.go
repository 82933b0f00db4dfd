package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"mercado/internal/config"
	"mercado/internal/constants"
	"mercado/internal/logger"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/logging"
	"mercado/pkg/metrics"
	"mercado/pkg/retry"
	"mercado/pkg/tracing"
)

type KafkaProducer struct {
	writer  *kafka.Writer
	service string
}

func NewKafkaProducer(cfg config.KafkaConfig, service string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           constants.KafkaBatchTimeout,
			WriteTimeout:           constants.KafkaWriteTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		service: service,
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
		Time:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	metrics.IncKafkaMessagesWritten(p.service, topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads one topic in a consumer group. Records are committed
// after the handler succeeds, after they are parked on the DLQ topic, or when
// they fail with a non-retryable error.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	topic       string
	reader      *kafka.Reader
	dlqProducer *KafkaProducer
	logger      logger.Logger
	service     string
}

func NewKafkaConsumer(cfg config.KafkaConfig, topic, service string, log logger.Logger) *KafkaConsumer {
	c := &KafkaConsumer{
		cfg:   cfg,
		topic: topic,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		logger:  log,
		service: service,
	}
	if cfg.DLQTopic != "" {
		c.dlqProducer = NewKafkaProducer(cfg, service)
	}
	return c
}

// Consume blocks until ctx is cancelled or the consumer is closed.
func (c *KafkaConsumer) Consume(ctx context.Context, handler KafkaHandlerFunc) error {
	topic := c.topic
	consumeCtx := logging.WithServiceName(ctx, c.service)
	c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic, "group_id", c.cfg.GroupID)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming", "topic", topic)
				return nil
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message", "error", err, "topic", topic)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.IncKafkaMessagesRead(c.service, topic)
		c.handle(ctx, m, handler)
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message, handler KafkaHandlerFunc) {
	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume "+m.Topic, m.Headers)
	defer span.End()

	msgCtx = logging.WithServiceName(msgCtx, c.service)
	msgCtx = logging.WithMessageID(msgCtx, fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))
	if traceID := tracing.TraceID(msgCtx); traceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, traceID)
	}

	if err := c.processWithRetry(msgCtx, m, handler); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process kafka message", "error", err, "topic", m.Topic)
		if pkgerrors.IsRetryable(err) && c.dlqProducer != nil {
			if dlqErr := c.sendToDLQ(msgCtx, m, err); dlqErr != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ", "error", dlqErr)
			}
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to commit message", "error", err, "topic", m.Topic)
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, m kafka.Message, handler KafkaHandlerFunc) error {
	return retry.RetryWithCallback(ctx, retryPolicy(c.cfg.Retry), func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = pkgerrors.RecoverPanic(r)
			}
		}()
		return handler(ctx, m.Key, m.Value)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.service, m.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying kafka message",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, m kafka.Message, cause error) error {
	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, m.Key, m.Value); err != nil {
		return err
	}
	metrics.DLQMessagesTotal.WithLabelValues(c.service, m.Topic, "max_retries_exceeded").Inc()
	c.logger.WarnwCtx(ctx, "Message sent to DLQ",
		"source_topic", m.Topic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", cause.Error(),
	)
	return nil
}

func (c *KafkaConsumer) Close() error {
	err := c.reader.Close()
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

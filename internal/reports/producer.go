package reports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"mercado/internal/broker"
	"mercado/internal/logger"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/metrics"
	"mercado/pkg/models"
)

// Accepted is returned once the broker has confirmed the envelope.
type Accepted struct {
	MessageID string
}

// Producer validates submissions and enqueues them as report envelopes.
// A failed publish is reported to the caller and never retried here.
type Producer struct {
	publisher broker.Publisher
	logger    logger.Logger
	now       func() time.Time
}

func NewProducer(publisher broker.Publisher, log logger.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (p *Producer) Submit(ctx context.Context, s Submission) (Accepted, error) {
	if err := s.Validate(); err != nil {
		return Accepted{}, err
	}

	ts := p.now()
	envelope, err := models.NewReportEnvelope(models.ReportData{
		Producto:     s.Producto,
		Supermercado: s.Supermercado,
		Precio:       *s.Precio,
		Descripcion:  s.Descripcion,
		Timestamp:    ts,
	})
	if err != nil {
		return Accepted{}, pkgerrors.ErrInternal.WithCause(err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return Accepted{}, pkgerrors.ErrInternal.WithCause(err)
	}

	msg := broker.Message{
		ID:        uuid.New().String(),
		Type:      models.EnvelopeTypeInconsistency,
		Body:      body,
		Timestamp: ts,
	}

	start := time.Now()
	if err := p.publisher.Publish(ctx, msg); err != nil {
		status := "error"
		if errors.Is(err, broker.ErrQueueUnavailable) {
			status = "queue_unavailable"
		}
		metrics.ObservePublish(status, time.Since(start))
		p.logger.ErrorwCtx(ctx, "Failed to enqueue report", "error", err, "message_id", msg.ID)
		return Accepted{}, asPublishError(err)
	}

	metrics.ObservePublish("success", time.Since(start))
	p.logger.InfowCtx(ctx, "Report enqueued",
		"message_id", msg.ID,
		"producto", s.Producto,
		"supermercado", s.Supermercado,
	)
	return Accepted{MessageID: msg.ID}, nil
}

// asPublishError keeps broker classifications and maps anything else to an
// internal error so the HTTP layer always answers 500.
func asPublishError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) && appErr.Status >= 500 {
		return err
	}
	return pkgerrors.ErrInternal.WithMessage("Fallo en el servicio de mensajería.").WithCause(err)
}

package notification

import (
	"context"
	"encoding/json"

	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/realtime"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/metrics"
)

type Broadcaster interface {
	Broadcast(msg []byte) realtime.BroadcastResult
}

var ErrRelayBusy = pkgerrors.ErrServiceUnavailable.WithMessage("notification queue is full")

// Relay turns events into broadcast frames. Notify only enqueues; a single
// dispatcher started with Run does the fan-out, so callers never wait on
// slow clients and events from one caller keep their order.
type Relay struct {
	broadcaster Broadcaster
	queue       chan Event
	logger      logger.Logger
}

func NewRelay(broadcaster Broadcaster, queueSize int, log logger.Logger) *Relay {
	if queueSize <= 0 {
		queueSize = constants.DefaultNotifyQueueSize
	}
	return &Relay{
		broadcaster: broadcaster,
		queue:       make(chan Event, queueSize),
		logger:      log,
	}
}

func (r *Relay) Notify(ctx context.Context, ev Event) error {
	select {
	case r.queue <- ev:
		metrics.NotificationQueueSize.Set(float64(len(r.queue)))
		return nil
	default:
		metrics.IncNotification(string(ev.Type), "dropped")
		r.logger.WarnwCtx(ctx, "Notification dropped, dispatch queue full", "tipo", ev.Type)
		return ErrRelayBusy
	}
}

// Run dispatches queued events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			metrics.NotificationQueueSize.Set(float64(len(r.queue)))
			r.dispatch(ctx, ev)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, ev Event) {
	frame, err := json.Marshal(ev.Broadcast())
	if err != nil {
		metrics.IncNotification(string(ev.Type), "error")
		r.logger.ErrorwCtx(ctx, "Failed to encode notification", "tipo", ev.Type, "error", err)
		return
	}

	result := r.broadcaster.Broadcast(frame)
	metrics.IncBroadcast(string(ev.Type))
	metrics.IncNotification(string(ev.Type), "sent")
	r.logger.InfowCtx(ctx, "Notification broadcast",
		"tipo", ev.Type,
		"clients", result.Attempted,
		"failed", result.Failed,
	)
}

// HandleKafka feeds records from the notification topic into Notify.
// Undecodable records are dropped; a full queue is reported as retryable.
func (r *Relay) HandleKafka(ctx context.Context, key, value []byte) error {
	ev, err := DecodeEvent(value)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Discarding notification record", "error", err)
		return err
	}
	return r.Notify(ctx, ev)
}

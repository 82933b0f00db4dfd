package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mercado/internal/constants"
	"mercado/internal/logger"
	"mercado/internal/notification"
	"mercado/internal/reports"
	"mercado/pkg/cel"
	"mercado/pkg/circuitbreaker"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/logging"
	"mercado/pkg/metrics"
	"mercado/pkg/models"
	"mercado/pkg/retry"
	"mercado/pkg/tracing"
)

// ErrDeliveriesClosed is returned by Run when the broker stops delivering
// while the worker is still supposed to be running.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

const (
	notifyTimeout     = 5 * time.Second
	requeueMultiplier = 2.0
)

type Store interface {
	Create(ctx context.Context, r reports.NewReport) (reports.Report, bool, error)
}

type Option func(*Worker)

func WithRules(rules *cel.RuleSet) Option {
	return func(w *Worker) { w.rules = rules }
}

func WithBreaker(breaker *circuitbreaker.Wrapper) Option {
	return func(w *Worker) { w.breaker = breaker }
}

func WithAttemptTracker(tracker AttemptTracker) Option {
	return func(w *Worker) { w.attempts = tracker }
}

func WithNotifier(client notification.Client) Option {
	return func(w *Worker) { w.notifier = client }
}

// WithRequeueBackoff sets how long a transiently failed delivery is held
// before it is handed back to the queue. The delay doubles per attempt up
// to maxDelay; a call the breaker refused always waits maxDelay.
func WithRequeueBackoff(initial, maxDelay time.Duration) Option {
	return func(w *Worker) {
		if initial >= 0 && maxDelay >= initial {
			w.requeueDelay = initial
			w.maxRequeueDelay = maxDelay
		}
	}
}

func WithMaxRedeliveries(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxRedeliveries = n
		}
	}
}

// Worker turns queued report envelopes into persisted reports. It handles
// one delivery at a time and settles each one before taking the next.
type Worker struct {
	store           Store
	rules           *cel.RuleSet
	breaker         *circuitbreaker.Wrapper
	attempts        AttemptTracker
	notifier        notification.Client
	maxRedeliveries int
	requeueDelay    time.Duration
	maxRequeueDelay time.Duration
	service         string
	logger          logger.Logger

	signals sync.WaitGroup
}

func New(store Store, log logger.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:           store,
		maxRedeliveries: constants.DefaultMaxRedeliveries,
		requeueDelay:    constants.DefaultRequeueDelay,
		maxRequeueDelay: constants.DefaultMaxRequeueDelay,
		service:         constants.ServiceWorker,
		logger:          log,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.attempts == nil {
		w.attempts = NewMemoryAttemptTracker(0)
	}
	if w.notifier == nil {
		w.notifier = notification.NopClient{}
	}
	return w
}

// Run consumes deliveries until ctx is cancelled or the channel closes.
// A delivery in progress when ctx is cancelled is left unsettled.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	defer w.signals.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle drives one delivery through the state machine and settles it.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) Result {
	start := time.Now()
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	key := IdempotencyKey(d)
	msgCtx, span := tracing.StartSpanFromDelivery(ctx, "report.process", d.Headers)
	defer span.End()
	msgCtx = logging.WithServiceName(msgCtx, w.service)
	msgCtx = logging.WithMessageID(msgCtx, key)
	if traceID := tracing.TraceID(msgCtx); traceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, traceID)
	}

	var res Result
	res.enter(StateReceived)
	w.logger.DebugwCtx(msgCtx, "Delivery received", "redelivered", d.Redelivered)

	res.enter(StateValidating)
	report, err := w.validate(msgCtx, key, d.Body)
	if err != nil {
		w.discard(msgCtx, d, &res, err)
		metrics.ObserveWorkerOutcome(string(res.Outcome), time.Since(start))
		return res
	}

	res.enter(StatePersisting)
	w.persist(msgCtx, d, key, report, &res)
	metrics.ObserveWorkerOutcome(string(res.Outcome), time.Since(start))
	return res
}

func (w *Worker) validate(ctx context.Context, key string, body []byte) (reports.NewReport, error) {
	var env models.ReportEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return reports.NewReport{}, pkgerrors.ErrValidation.WithMessage("malformed envelope").WithCause(err)
	}
	if env.Tipo != models.EnvelopeTypeInconsistency {
		return reports.NewReport{}, pkgerrors.ErrValidation.WithMessage("unknown envelope type").WithDetail("tipo", env.Tipo)
	}

	var sub reports.Submission
	if err := json.Unmarshal(env.Datos, &sub); err != nil {
		return reports.NewReport{}, pkgerrors.ErrValidation.WithMessage("malformed report data").WithCause(err)
	}
	if err := sub.Validate(); err != nil {
		return reports.NewReport{}, err
	}

	if w.rules.Len() > 0 {
		var datos map[string]interface{}
		if err := json.Unmarshal(env.Datos, &datos); err != nil {
			return reports.NewReport{}, pkgerrors.ErrValidation.WithMessage("malformed report data").WithCause(err)
		}
		if rule, ok := w.rules.Check(ctx, cel.Vars{Tipo: env.Tipo, MessageID: key, Datos: datos}); !ok {
			return reports.NewReport{}, pkgerrors.ErrValidation.WithMessage("report rejected by rule").WithDetail("rule", rule)
		}
	}

	return reports.NewReport{
		EnvelopeID:   key,
		Producto:     sub.Producto,
		Supermercado: sub.Supermercado,
		Precio:       *sub.Precio,
		Descripcion:  sub.Descripcion,
	}, nil
}

func (w *Worker) persist(ctx context.Context, d amqp.Delivery, key string, in reports.NewReport, res *Result) {
	var (
		report  reports.Report
		created bool
	)
	err := w.execute(ctx, func(ctx context.Context) error {
		var err error
		report, created, err = w.store.Create(ctx, in)
		return err
	})

	switch {
	case err == nil:
		res.ReportID = report.ID
		res.Outcome = OutcomePersisted
		if !created {
			res.Outcome = OutcomeDuplicate
		}
		w.ack(ctx, d, res)
		if err := w.attempts.Reset(ctx, key); err != nil {
			w.logger.WarnwCtx(ctx, "Failed to reset attempt count", "error", err)
		}
		if created {
			w.logger.InfowCtx(ctx, "Report persisted", "report_id", report.ID, "producto", report.ProductoNombre)
			w.signal(ctx, notification.ReportSignal{ID: report.ID, Producto: report.ProductoNombre})
		} else {
			w.logger.InfowCtx(ctx, "Duplicate delivery, report already persisted", "report_id", report.ID)
		}

	case ctx.Err() != nil:
		res.Outcome = OutcomeUnsettled
		w.logger.WarnwCtx(ctx, "Shutdown interrupted persistence, leaving delivery unsettled")

	case !pkgerrors.IsRetryable(err):
		w.discard(ctx, d, res, err)

	default:
		w.retryOrDeadLetter(ctx, d, key, res, err)
	}
}

func (w *Worker) execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanic(r)
		}
	}()
	if w.breaker != nil {
		return w.breaker.Execute(ctx, fn)
	}
	return fn(ctx)
}

func (w *Worker) retryOrDeadLetter(ctx context.Context, d amqp.Delivery, key string, res *Result, cause error) {
	res.Reason = cause.Error()

	// A refused call never reached the store, so it does not use up the
	// delivery's redelivery budget.
	attempts := 0
	delay := w.maxRequeueDelay
	reached := !circuitbreaker.IsRejected(cause)
	if reached {
		attempts = w.countAttempt(ctx, d, key)
		if attempts >= w.maxRedeliveries {
			w.deadLetter(ctx, d, key, res, attempts, cause)
			return
		}
		delay = retry.CalculateBackoffDuration(attempts, w.requeueDelay, requeueMultiplier, w.maxRequeueDelay)
	}

	if !sleep(ctx, delay) {
		res.Outcome = OutcomeUnsettled
		w.logger.WarnwCtx(ctx, "Shutdown interrupted requeue backoff, leaving delivery unsettled")
		return
	}

	res.enter(StateRequeued)
	res.Outcome = OutcomeRequeued
	if err := d.Nack(false, true); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to requeue delivery", "error", err)
	}
	metrics.RetryAttemptsTotal.WithLabelValues(w.service, "rabbitmq").Inc()
	w.logger.WarnwCtx(ctx, "Transient failure, report requeued",
		"attempt", attempts,
		"max_redeliveries", w.maxRedeliveries,
		"requeue_delay", delay,
		"store_reached", reached,
		"error", cause,
	)
}

// countAttempt takes the higher of the tracked count and the broker's own
// delivery counter.
func (w *Worker) countAttempt(ctx context.Context, d amqp.Delivery, key string) int {
	attempts, err := w.attempts.Incr(ctx, key)
	if err != nil {
		w.logger.WarnwCtx(ctx, "Failed to count attempt", "error", err)
	}
	if n := deliveryCount(d); n > attempts {
		attempts = n
	}
	return attempts
}

func (w *Worker) deadLetter(ctx context.Context, d amqp.Delivery, key string, res *Result, attempts int, cause error) {
	res.enter(StateDeadLettering)
	res.Outcome = OutcomeDeadLettered
	if err := d.Nack(false, false); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to dead-letter delivery", "error", err)
	}
	if err := w.attempts.Reset(ctx, key); err != nil {
		w.logger.WarnwCtx(ctx, "Failed to reset attempt count", "error", err)
	}
	metrics.DLQMessagesTotal.WithLabelValues(w.service, "rabbitmq", "max_redeliveries_exceeded").Inc()
	w.logger.ErrorwCtx(ctx, "Report sent to dead-letter queue",
		"attempts", attempts,
		"max_redeliveries", w.maxRedeliveries,
		"error", cause,
	)
}

func (w *Worker) discard(ctx context.Context, d amqp.Delivery, res *Result, cause error) {
	res.enter(StateDiscarding)
	res.Outcome = OutcomeDiscarded
	res.Reason = cause.Error()
	w.logger.WarnwCtx(ctx, "Discarding report that failed data integrity checks", "error", cause)
	w.ack(ctx, d, res)
}

func (w *Worker) ack(ctx context.Context, d amqp.Delivery, res *Result) {
	res.enter(StateAcknowledged)
	if err := d.Ack(false); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to acknowledge delivery", "error", err)
	}
}

// signal tells the gateway about a new report without holding up the next
// delivery. Failures are logged only.
func (w *Worker) signal(ctx context.Context, s notification.ReportSignal) {
	w.signals.Add(1)
	go func() {
		defer w.signals.Done()
		sigCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := w.notifier.NotifyReport(sigCtx, s); err != nil {
			w.logger.WarnwCtx(sigCtx, "Failed to signal gateway", "report_id", s.ID, "error", err)
		}
	}()
}

// IdempotencyKey is the envelope's MessageId, or a digest of the body for
// producers that do not set one.
func IdempotencyKey(d amqp.Delivery) string {
	if d.MessageId != "" {
		return d.MessageId
	}
	sum := sha256.Sum256(d.Body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// deliveryCount reads the broker-maintained x-delivery-count header set by
// quorum queues. It counts previous deliveries, so one is added.
func deliveryCount(d amqp.Delivery) int {
	v, ok := d.Headers["x-delivery-count"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n + 1
	case int32:
		return int(n) + 1
	case int64:
		return int(n) + 1
	}
	return 0
}

// sleep waits for d and reports false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"mercado/internal/config"
	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/metrics"
)

type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultConfig(name string) Config {
	return FromSettings(name, config.CircuitBreakerConfig{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	})
}

// FromSettings maps the circuit_breaker config section onto a breaker Config.
func FromSettings(name string, cfg config.CircuitBreakerConfig) Config {
	ratio := cfg.FailureRatio
	minRequests := cfg.MinRequests
	return Config{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
	}
}

type Wrapper struct {
	cb *gobreaker.CircuitBreaker
}

func NewWrapper(cfg Config) *Wrapper {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
		// Only infrastructure failures count against the breaker; a
		// rejected row says nothing about the health of the store.
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsRetryable(err)
		},
	}

	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		updateStateMetric(name, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateStateMetric(cfg.Name, cb.State())

	return &Wrapper{cb: cb}
}

// Execute runs fn under the breaker. An open breaker is reported as a
// retryable ErrServiceUnavailable.
func (w *Wrapper) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	w.recordRequest(err)

	if IsRejected(err) {
		return pkgerrors.ErrServiceUnavailable.
			WithCause(err).
			WithDetail("breaker", w.cb.Name()).
			AsRetryable()
	}
	return err
}

// IsRejected reports whether err came from the breaker refusing the call,
// meaning fn never ran.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (w *Wrapper) State() gobreaker.State {
	return w.cb.State()
}

func (w *Wrapper) Name() string {
	return w.cb.Name()
}

func (w *Wrapper) IsOpen() bool {
	return w.cb.State() == gobreaker.StateOpen
}

func (w *Wrapper) recordRequest(err error) {
	metrics.CircuitBreakerRequests.WithLabelValues(w.cb.Name(), w.cb.State().String()).Inc()
	if err != nil && pkgerrors.IsRetryable(err) {
		metrics.CircuitBreakerFailures.WithLabelValues(w.cb.Name()).Inc()
	}
}

func updateStateMetric(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}

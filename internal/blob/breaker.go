package blob

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/metrics"
)

// BreakerState represents the current state of the circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

type BreakerConfig struct {
	Name              string
	MaxFailures       int           // Open circuit after N consecutive failures
	ResetTimeout      time.Duration // Wait before trying half-open
	HalfOpenSuccesses int           // Required successes to close circuit
}

// CircuitBreaker stops calling an unhealthy dependency until a reset
// timeout has passed.
type CircuitBreaker struct {
	cfg             BreakerConfig
	logger          *logrus.Logger
	state           BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	trialInFlight   bool // HALF_OPEN admits one call at a time
	mu              sync.Mutex
	now             func() time.Time
}

func NewCircuitBreaker(cfg BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 1
	}
	if cfg.Name == "" {
		cfg.Name = "blob"
	}

	cb := &CircuitBreaker{
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
	metrics.SetCircuitBreakerState(cfg.Name, int(StateClosed))
	return cb
}

// Execute runs fn unless the circuit is open. While half-open only one
// trial call runs at a time; the rest fail fast with ErrCircuitOpen. Caller
// cancellation is not counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialInFlight = false
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		cb.onFailure(err)
		return err
	}

	cb.onSuccess()
	return nil
}

// allow reports whether the call may proceed and whether it is the
// half-open trial.
func (cb *CircuitBreaker) allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil

	case StateHalfOpen:
		if cb.trialInFlight {
			return false, ErrCircuitOpen
		}
		cb.trialInFlight = true
		return true, nil
	}

	if cb.now().Sub(cb.lastFailureTime) <= cb.cfg.ResetTimeout {
		return false, ErrCircuitOpen
	}

	cb.setState(StateHalfOpen)
	cb.successCount = 0
	cb.trialInFlight = true
	cb.logger.WithField("breaker", cb.cfg.Name).Info("Circuit breaker: OPEN → HALF_OPEN (retry attempt)")
	return true, nil
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.cfg.MaxFailures {
			cb.setState(StateOpen)
			cb.logger.WithFields(logrus.Fields{
				"breaker":       cb.cfg.Name,
				"failure_count": cb.failureCount,
				"error":         err.Error(),
			}).Error("Circuit breaker: CLOSED → OPEN")
		}

	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.failureCount = 0
		cb.logger.WithError(err).WithField("breaker", cb.cfg.Name).Error("Circuit breaker: HALF_OPEN → OPEN (still unhealthy)")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.successCount++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		if cb.successCount >= cb.cfg.HalfOpenSuccesses {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.WithField("breaker", cb.cfg.Name).Info("Circuit breaker: HALF_OPEN → CLOSED (recovered)")
		}
	}
}

func (cb *CircuitBreaker) setState(state BreakerState) {
	cb.state = state
	metrics.SetCircuitBreakerState(cb.cfg.Name, int(state))
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns current circuit breaker statistics
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":          cb.cfg.Name,
		"state":         cb.state.String(),
		"failure_count": cb.failureCount,
		"success_count": cb.successCount,
		"max_failures":  cb.cfg.MaxFailures,
		"last_failure":  cb.lastFailureTime,
		"reset_timeout": cb.cfg.ResetTimeout.String(),
	}
}

// BreakerUploader routes every call to the wrapped Uploader through a
// CircuitBreaker.
type BreakerUploader struct {
	next    Uploader
	breaker *CircuitBreaker
}

func NewBreakerUploader(next Uploader, breaker *CircuitBreaker) *BreakerUploader {
	return &BreakerUploader{next: next, breaker: breaker}
}

func (u *BreakerUploader) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	var url string
	err := u.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		url, err = u.next.Put(ctx, key, contentType, body, size)
		return err
	})
	return url, err
}

func (u *BreakerUploader) Delete(ctx context.Context, key string) error {
	return u.breaker.Execute(ctx, func(ctx context.Context) error {
		return u.next.Delete(ctx, key)
	})
}

func (u *BreakerUploader) Breaker() *CircuitBreaker {
	return u.breaker
}

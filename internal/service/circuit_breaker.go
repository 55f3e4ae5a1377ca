package service

import (
	"context"
	"sync"
	"time"

	"relayq/internal/constants"
	"relayq/internal/errors"

	"github.com/sirupsen/logrus"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the wrapped function.
var ErrCircuitOpen = errors.New(errors.ErrCodeRelayAPI, "circuit breaker is open")

// CircuitBreaker implements the circuit breaker pattern for relay
// server calls. When the relay is down, a drain pass fast-fails
// instead of burning a full timeout per queued message.
type CircuitBreaker struct {
	name             string
	maxFailures      uint32
	timeout          time.Duration
	halfOpenMaxCalls uint32

	mu              sync.Mutex
	state           CircuitBreakerState
	failures        uint32
	lastFailureTime time.Time
	halfOpenCalls   uint32

	logger *errors.Logger
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, maxFailures uint32, timeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		timeout:          timeout,
		halfOpenMaxCalls: constants.CBHalfOpenMaxCalls,
		state:            StateClosed,
		logger:           errors.WrapLogger(logger),
	}
}

// Execute wraps a function call with circuit breaker logic
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		cb.recordFailure()
		cb.logger.LogWarn(
			errors.WrapRetryable(err, errors.ErrCodeRelayAPI, "circuit breaker recorded failure"),
			"Circuit breaker failure recorded",
			logrus.Fields{
				LogFieldService:  cb.name,
				LogFieldDuration: duration.Milliseconds(),
			},
		)
		return err
	}

	cb.recordSuccess()
	return nil
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.timeout {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 0
			cb.logger.Logger.WithField(LogFieldService, cb.name).Info("Circuit breaker transitioning to half-open")
		} else {
			return false
		}
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	}
	return false
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.logger.Logger.WithFields(logrus.Fields{
				LogFieldService: cb.name,
				"failures":      cb.failures,
			}).Warn("Circuit breaker opened")
		}
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.logger.Logger.WithField(LogFieldService, cb.name).Info("Circuit breaker closed after successful probe")
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
}

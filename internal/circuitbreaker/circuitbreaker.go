// Package circuitbreaker guards calls to an upstream provider so that a
// failing provider is rejected fast instead of holding visitor requests open.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/clock"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected
	StateHalfOpen              // a few probe calls are let through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Errors returned by the circuit breaker.
var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that closes it.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests caps concurrent probes while half-open.
	HalfOpenMaxRequests int
}

// DefaultConfig returns the settings used for the LLM provider.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:    5,
		SuccessThreshold:    3,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// StateChangeFunc is called with the breaker's lock held whenever the state
// changes. It must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithStateChange registers a state transition hook.
func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu sync.RWMutex

	config        *Config
	clock         clock.Clock
	onStateChange StateChangeFunc

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	halfOpenRequests     int
	lastFailure          time.Time
	lastStateChange      time.Time

	totalRequests  int64
	totalSuccesses int64
	totalFailures  int64
	totalRejected  int64
	totalIgnored   int64
	lastError      error

	logger *zap.Logger
	name   string
}

// New creates a closed circuit breaker.
func New(name string, config *Config, logger *zap.Logger, opts ...Option) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		clock:  clock.New(),
		state:  StateClosed,
		logger: logger,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.lastStateChange = cb.clock.Now()
	return cb
}

// Execute runs fn unless the circuit rejects the call. Errors for which
// ShouldRetry is false, such as a caller canceling its context, are returned
// unchanged but do not count as provider failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	now := cb.clock.Now()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if now.Sub(cb.lastFailure) >= cb.config.OpenTimeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenRequests = 1
			cb.logger.Info("circuit breaker probing",
				zap.String("name", cb.name),
				zap.Duration("open_for", now.Sub(cb.lastFailure)),
			)
			return nil
		}
		cb.totalRejected++
		return ErrCircuitOpen

	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			cb.totalRejected++
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
		return nil
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.recordSuccess()
	case ShouldRetry(err):
		cb.recordFailure(err)
	default:
		cb.totalIgnored++
		if cb.state == StateHalfOpen && cb.halfOpenRequests > 0 {
			cb.halfOpenRequests--
		}
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.totalFailures++
	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0
	cb.lastFailure = cb.clock.Now()
	cb.lastError = err

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			failures := cb.consecutiveFailures
			cb.setState(StateOpen)
			cb.logger.Warn("circuit breaker opened",
				zap.String("name", cb.name),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			)
		}

	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker reopened after failed probe",
			zap.String("name", cb.name),
			zap.Error(err),
		)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.totalSuccesses++
	cb.consecutiveSuccesses++
	cb.consecutiveFailures = 0

	if cb.state == StateHalfOpen && cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
		cb.logger.Info("circuit breaker closed", zap.String("name", cb.name))
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	old := cb.state
	cb.state = newState
	cb.lastStateChange = cb.clock.Now()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.halfOpenRequests = 0

	if cb.onStateChange != nil && old != newState {
		cb.onStateChange(cb.name, old, newState)
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen returns true if the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateOpen
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var lastError string
	if cb.lastError != nil {
		lastError = cb.lastError.Error()
	}

	return Stats{
		Name:                 cb.name,
		State:                cb.state.String(),
		TotalRequests:        cb.totalRequests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalRejected:        cb.totalRejected,
		TotalIgnored:         cb.totalIgnored,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		LastFailure:          cb.lastFailure,
		LastStateChange:      cb.lastStateChange,
		LastError:            lastError,
	}
}

// Stats holds circuit breaker statistics.
type Stats struct {
	Name                 string    `json:"name"`
	State                string    `json:"state"`
	TotalRequests        int64     `json:"total_requests"`
	TotalSuccesses       int64     `json:"total_successes"`
	TotalFailures        int64     `json:"total_failures"`
	TotalRejected        int64     `json:"total_rejected"`
	TotalIgnored         int64     `json:"total_ignored"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastFailure          time.Time `json:"last_failure,omitempty"`
	LastStateChange      time.Time `json:"last_state_change"`
	LastError            string    `json:"last_error,omitempty"`
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.setState(StateClosed)
	cb.totalRejected = 0
	cb.lastError = nil

	cb.logger.Info("circuit breaker reset",
		zap.String("name", cb.name),
		zap.String("from_state", oldState.String()),
	)
}

// ShouldRetry reports whether err says something about the provider's
// health. Caller cancellation, deadlines and the breaker's own rejections
// do not.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return false
	}
	return true
}

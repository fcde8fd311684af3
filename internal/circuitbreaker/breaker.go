// Package circuitbreaker guards the External Data Fetcher against a vendor
// that has started failing: once enough consecutive FetchError::Transport or
// FetchError::RateLimited errors come back, the breaker trips open and
// rejects calls locally (no network round trip) until a cool-down passes,
// then lets a handful of probe requests through to test recovery.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/metrics"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
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

// Config holds the breaker's trip thresholds and collaborators.
type Config struct {
	// Name identifies the breaker in logs and metric labels.
	Name string

	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// Timeout is how long to wait in the open state before probing again.
	Timeout time.Duration

	// MaxRequests is the number of consecutive half-open successes needed
	// to close, and the concurrent probe budget allowed while half-open.
	MaxRequests int

	Logger zerolog.Logger

	// IsFailure classifies an error returned by the wrapped call as a
	// breaker-worthy failure. Only transport-level flakiness and vendor
	// rate-limiting should trip the breaker, not a DataError::Validation
	// or a permanent FetchError::Vendor rejection the vendor will keep
	// returning regardless of how the call is spaced out. A nil
	// IsFailure treats every non-nil error as a failure.
	IsFailure func(error) bool

	// Metrics records trips and state transitions; nil disables recording.
	Metrics *metrics.EngineMetrics
}

// DefaultConfig returns the breaker settings the External Data Fetcher wraps
// its vendor calls with: five consecutive failures trip the breaker, a
// 30-second cool-down before probing again, three probe requests to confirm
// recovery.
func DefaultConfig(name string, logger zerolog.Logger) Config {
	return Config{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 3,
		Logger:      logger,
	}
}

// CircuitBreaker is a closed/open/half-open state machine wrapped around a
// single external dependency.
type CircuitBreaker struct {
	config Config

	mu              sync.RWMutex
	state           State
	failures        int
	consecutiveSucc int
	lastStateChange time.Time
	halfOpenReqs    int
}

// New builds a breaker from config, filling in defaults for any non-positive
// threshold.
func New(config Config) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 3
	}

	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn if the breaker currently allows it, rejecting it outright
// with a local error when open (or when the half-open probe budget is
// exhausted) rather than letting it reach the vendor.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()

	cb.afterRequest(err)

	return err
}

// beforeRequest checks whether the request should be allowed through.
func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastStateChange) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenReqs = 0
			cb.config.Logger.Info().
				Str("breaker", cb.config.Name).
				Msg("circuit breaker entering half-open state")
			return nil
		}
		return fmt.Errorf("circuit breaker '%s' is open", cb.config.Name)

	case StateHalfOpen:
		if cb.halfOpenReqs >= cb.config.MaxRequests {
			return fmt.Errorf("circuit breaker '%s' half-open limit reached", cb.config.Name)
		}
		cb.halfOpenReqs++
		return nil

	default:
		return fmt.Errorf("unknown circuit breaker state")
	}
}

// afterRequest classifies the call's result and updates the state machine.
// A non-nil error that IsFailure rejects (e.g. a permanent vendor error, or
// a validation error that has nothing to do with the vendor's health) is
// treated the same as a success: it doesn't make sense to trip the breaker
// over an error retrying harder can't fix.
func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.isFailure(err) {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.consecutiveSucc = 0

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
			cb.config.Logger.Warn().
				Str("breaker", cb.config.Name).
				Int("failures", cb.failures).
				Msg("circuit breaker opened due to failures")
		}

	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.config.Logger.Warn().
			Str("breaker", cb.config.Name).
			Msg("circuit breaker re-opened after half-open failure")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveSucc++

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		if cb.consecutiveSucc >= cb.config.MaxRequests {
			cb.setState(StateClosed)
			cb.failures = 0
			cb.config.Logger.Info().
				Str("breaker", cb.config.Name).
				Msg("circuit breaker closed after successful half-open requests")
		}
	}
}

// setState transitions the breaker and records the transition; callers must
// hold cb.mu.
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = time.Now()
	cb.config.Metrics.SetCircuitBreakerState(cb.config.Name, float64(state))
	if state == StateOpen {
		cb.config.Metrics.RecordCircuitBreakerTrip(cb.config.Name)
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

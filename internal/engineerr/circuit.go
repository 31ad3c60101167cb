package engineerr

import (
	"sync"
	"time"
)

// CircuitState is the circuit breaker's current state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards the semantic search path: once the embedding
// provider or vector store has failed maxFailures times, further calls
// short-circuit straight to ProviderUnavailable instead of paying a
// connection timeout per query.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// NewCircuitBreaker creates a breaker with the given failure threshold and
// reset timeout (how long to wait before trying a half-open probe).
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == CircuitOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState()
}

// Execute runs fn through the breaker, translating a trip into
// ProviderUnavailable rather than letting the caller's timeout fire again.
func (cb *CircuitBreaker) Execute(op string, fn func() error) error {
	cb.mu.Lock()
	state := cb.currentState()
	if state == CircuitOpen {
		cb.mu.Unlock()
		return New(ProviderUnavailable, op, cb.name+" circuit open").WithDetail("circuit", cb.name)
	}
	cb.mu.Unlock()

	err := fn()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
		}
		return err
	}
	cb.failures = 0
	cb.state = CircuitClosed
	return nil
}

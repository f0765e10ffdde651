// Package circuit provides a per-provider circuit breaker.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

// Circuit breaker states.
const (
	Closed   State = iota // Normal operation
	Open                  // Failing, reject requests
	HalfOpen              // Testing whether the provider recovered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines configuration for circuit breaker behavior.
type Config struct {
	Now              func() time.Time `json:"-"`                 // Clock; defaults to time.Now
	FailureThreshold int              `json:"failure_threshold"` // Failures before opening
	SuccessThreshold int              `json:"success_threshold"` // Successes in half-open before closing
	Timeout          time.Duration    `json:"timeout"`           // Cool-down before half-open
}

// DefaultConfig opens on the first exhausted provider and tries it again after a minute.
//
//nolint:gochecknoglobals // sensible default config pattern
var DefaultConfig = Config{
	FailureThreshold: 1,
	SuccessThreshold: 1,
	Timeout:          60 * time.Second,
}

// Error represents an error when circuit is open.
type Error struct {
	State State
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	OpenedAt time.Time `json:"opened_at,omitempty"`
	State    string    `json:"state"`
	Failures int       `json:"failures"`
}

// Breaker defines the interface for circuit breaker implementations.
type Breaker interface {
	// Allow reports whether a request may proceed; an expired Open becomes HalfOpen.
	Allow() bool

	// Record records the result of a request.
	Record(success bool)

	// Release gives back an admitted half-open trial call that ended without an outcome.
	Release()

	// GetState returns the current state without transitioning.
	GetState() State

	// Snapshot returns state, failure count and open time.
	Snapshot() Snapshot

	// Reset forces the breaker closed.
	Reset()
}

//nolint:govet // logical field grouping
type breaker struct {
	config          Config
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	trialInFlight   bool // a half-open trial call is running
}

// New creates a new circuit breaker with the given configuration.
func New(config Config) Breaker {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &breaker{config: config, state: Closed}
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		// One trial call at a time; everyone else keeps using the fallback.
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	case Open:
		if b.config.Now().Sub(b.lastFailureTime) >= b.config.Timeout {
			b.state = HalfOpen
			b.successCount = 0
			b.trialInFlight = true
			return true
		}
		return false
	default:
		return false
	}
}

func (b *breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false
}

func (b *breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{State: b.state.String(), Failures: b.failureCount}
	if b.state != Closed {
		snap.OpenedAt = b.lastFailureTime
	}
	return snap
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
	b.trialInFlight = false
}

func (b *breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	case Open:
		// A call admitted before the breaker opened finished late; ignore it.
	}
}

func (b *breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = b.config.Now()

	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
	case Open:
	}
}

// Package circuitbreaker guards the ledger RPC endpoint: after a run of
// transport failures it fails calls fast for a cooldown, then lets a single
// probe through before closing again.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Do while the breaker is rejecting calls
var ErrOpen = fmt.Errorf("circuit breaker is open: rpc endpoint temporarily unavailable")

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // a probe call decides the next state
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

// Config holds the configuration for a breaker
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes that closes it
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before allowing a probe
	Cooldown time.Duration

	// OnStateChange is called synchronously, outside the lock, on every transition
	OnStateChange func(from, to State)

	// Now overrides the clock in tests
	Now func() time.Time
}

// DefaultConfig returns the defaults used for the RPC endpoint
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	state State

	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// New creates a breaker, replacing non-positive settings with defaults
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// current must be called with mu held
func (b *Breaker) current() State {
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Healthy reports whether calls are currently allowed through
func (b *Breaker) Healthy() bool {
	return b.State() != StateOpen
}

// Do runs fn when the breaker allows it. isFailure decides whether the
// returned error counts against the endpoint; a nil isFailure counts every
// non-nil error.
func (b *Breaker) Do(fn func() error, isFailure func(error) bool) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	from := b.current()
	b.probing = false
	b.failures = 0
	to := from
	if from == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			to = StateClosed
			b.successes = 0
		}
	}
	b.state = to
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	from := b.current()
	b.probing = false
	b.successes = 0
	b.failures++
	to := from
	if from == StateHalfOpen || (from == StateClosed && b.failures >= b.cfg.FailureThreshold) {
		to = StateOpen
		b.openedAt = b.cfg.Now()
	}
	b.state = to
	b.mu.Unlock()
	b.notify(from, to)
}

// Reset closes the breaker and clears counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.current()
	b.state = StateClosed
	b.failures, b.successes, b.probing = 0, 0, false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// Stats is a snapshot of the breaker
type Stats struct {
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	OpenedAt             time.Time
}

// Stats returns the current statistics
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:                b.current(),
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		OpenedAt:             b.openedAt,
	}
}

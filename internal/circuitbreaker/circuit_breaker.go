// Package circuitbreaker guards outbound venue calls. A venue that keeps
// failing gets its calls short-circuited for a cooldown period instead of
// burning the retry budget on every balance and price request of the cycle.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker state
type State string

const (
	// StateClosed means calls pass through
	StateClosed State = "closed"
	// StateOpen means calls are short-circuited until the cooldown elapses
	StateOpen State = "open"
	// StateHalfOpen means one trial call probes whether the venue recovered
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned instead of calling a venue whose breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures one breaker
type Config struct {
	// MaxConsecutiveFails opens the breaker once reached
	MaxConsecutiveFails int
	// Cooldown is how long the breaker stays open before a trial call
	Cooldown time.Duration
}

// DefaultConfig returns the breaker defaults: three consecutive failures
// open the breaker for thirty seconds.
func DefaultConfig() *Config {
	return &Config{
		MaxConsecutiveFails: 3,
		Cooldown:            30 * time.Second,
	}
}

// Breaker is one venue's circuit breaker. Closed until too many consecutive
// failures, then open for the cooldown, then half-open for a single trial.
type Breaker struct {
	name   string
	config *Config
	now    func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	openedAt         time.Time
	trialInFlight    bool
}

// New creates a breaker for the named venue.
func New(name string, config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Name returns the venue this breaker guards.
func (b *Breaker) Name() string { return b.name }

// Allow reports whether a call may proceed. In the open state it returns
// ErrOpen until the cooldown elapses, then admits a single trial call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrOpen
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

// Record reports the outcome of an allowed call. A success closes the
// breaker; a failure in half-open reopens it immediately.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false

	if err == nil {
		b.state = StateClosed
		b.consecutiveFails = 0
		return
	}

	b.consecutiveFails++
	if b.state == StateHalfOpen || b.consecutiveFails >= b.config.MaxConsecutiveFails {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// CurrentState returns the breaker state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

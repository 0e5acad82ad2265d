package backend

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the backend while a channel's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of one channel's breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
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

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = time.Minute
)

// BreakerConfig configures every breaker in a Breakers set.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before allowing a trial call.
	OpenTimeout time.Duration
	// OnStateChange is called with the channel ID whenever a breaker changes state.
	OnStateChange func(channelID string, from, to BreakerState)
}

// Breaker stops calling a failing channel for a while after repeated failures.
type Breaker struct {
	mu          sync.Mutex
	channelID   string
	cfg         BreakerConfig
	now         func() time.Time
	state       BreakerState
	failures    int
	lastFailure time.Time
	// trialing is set while the single half-open call is in flight.
	trialing bool
}

// Execute runs fn unless the breaker is open. A half-open breaker lets one
// call through; its result closes or re-opens the breaker.
func (b *Breaker) Execute(fn func() error) error {
	trial, err := b.before()
	if err != nil {
		return err
	}
	err = fn()
	b.after(err, trial)
	return err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// before admits a call. trial is true for the one call let through half-open.
func (b *Breaker) before() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		wait := b.cfg.OpenTimeout - b.now().Sub(b.lastFailure)
		if wait > 0 {
			return false, fmt.Errorf("%w: retry after %v", ErrCircuitOpen, wait.Round(time.Second))
		}
		b.transition(StateHalfOpen)
	case StateHalfOpen:
		if b.trialing {
			return false, fmt.Errorf("%w: trial call in flight", ErrCircuitOpen)
		}
	default:
		return false, nil
	}
	b.trialing = true
	return true, nil
}

func (b *Breaker) after(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialing = false
	}

	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.channelID, from, to)
	}
}

// Breakers hands out one breaker per publish channel.
type Breakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	now      func() time.Time
	breakers map[string]*Breaker
}

// NewBreakers creates an empty set.
func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	return &Breakers{cfg: cfg, now: time.Now, breakers: make(map[string]*Breaker)}
}

// WithClock replaces the time source, for tests.
func (s *Breakers) WithClock(now func() time.Time) *Breakers {
	s.now = now
	return s
}

// For returns the breaker of a channel, creating it closed on first use.
func (s *Breakers) For(channelID string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[channelID]
	if !ok {
		b = &Breaker{channelID: channelID, cfg: s.cfg, now: s.now}
		s.breakers[channelID] = b
	}
	return b
}

package breaker

import (
	"sync"
	"time"

	"hermes/pkg/logger"
)

// State of a provider circuit.
type State string

const (
	// StateClosed - calls flowing normally
	StateClosed State = "closed"

	// StateOpen - too many consecutive failures, provider considered down
	StateOpen State = "open"

	// StateHalfOpen - reset period elapsed, next outcome decides the state
	StateHalfOpen State = "half_open"
)

// Config configures circuit behavior. Zero values get sensible defaults.
type Config struct {
	FailureThreshold  int           // Consecutive failures before opening (e.g. 5)
	ResetAfter        time.Duration // How long the circuit stays fully open (e.g. 1min)
	MinBackoff        time.Duration // Initial probe backoff (e.g. 1s)
	MaxBackoff        time.Duration // Backoff ceiling (e.g. 5min)
	BackoffMultiplier float64       // Exponential backoff multiplier (e.g. 2.0)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.ResetAfter == 0 {
		c.ResetAfter = 1 * time.Minute
	}
	if c.MinBackoff == 0 {
		c.MinBackoff = 1 * time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	return c
}

// Breaker tracks call outcomes for one provider. It never gates dispatch:
// a request naming an open-circuit provider still goes through and fails on
// its own terms. The circuit state feeds health reporting and alerting only.
type Breaker struct {
	name string
	cfg  Config
	log  *logger.Logger

	mu                  sync.Mutex
	open                bool
	openedAt            time.Time
	consecutiveFailures int
	totalTrips          int
	currentBackoff      time.Duration
	lastFailure         time.Time
}

// New creates a closed circuit for the named provider.
func New(name string, cfg Config, log *logger.Logger) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		name:           name,
		cfg:            cfg,
		log:            log,
		currentBackoff: cfg.MinBackoff,
	}
}

// RecordFailure counts one failed call and updates backoff. It reports
// whether this failure tripped the circuit from closed to open, so callers
// can alert exactly once per outage.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailure = time.Now()

	newBackoff := time.Duration(float64(b.currentBackoff) * b.cfg.BackoffMultiplier)
	if newBackoff > b.cfg.MaxBackoff {
		newBackoff = b.cfg.MaxBackoff
	}
	b.currentBackoff = newBackoff

	if b.open {
		// Probe failed while half-open: stay open and restart the clock.
		b.openedAt = time.Now()
		b.log.Warnw("Provider probe failed, circuit stays open",
			"provider", b.name,
			"consecutive_failures", b.consecutiveFailures,
		)
		return false
	}

	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.open = true
		b.openedAt = time.Now()
		b.totalTrips++

		b.log.Errorw("🔴 Circuit OPENED - provider failing",
			"provider", b.name,
			"consecutive_failures", b.consecutiveFailures,
			"failure_threshold", b.cfg.FailureThreshold,
			"reset_after", b.cfg.ResetAfter,
		)
		return true
	}

	return false
}

// RecordSuccess counts one successful call, resetting failure state. It
// reports whether this success closed a previously open circuit.
func (b *Breaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.currentBackoff = b.cfg.MinBackoff

	if !b.open {
		return false
	}

	b.open = false
	b.openedAt = time.Time{}

	b.log.Infow("🟢 Circuit CLOSED - provider recovered",
		"provider", b.name,
		"total_trips", b.totalTrips,
	)
	return true
}

// State returns the current circuit state. An open circuit whose reset
// period has elapsed reports half-open: the next recorded outcome decides
// whether it closes or re-opens.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if !b.open {
		return StateClosed
	}
	if time.Since(b.openedAt) >= b.cfg.ResetAfter {
		return StateHalfOpen
	}
	return StateOpen
}

// Healthy reports whether the circuit is closed.
func (b *Breaker) Healthy() bool {
	return b.State() == StateClosed
}

// Reset manually closes the circuit and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		b.log.Infow("Manually resetting circuit", "provider", b.name)
	}
	b.open = false
	b.openedAt = time.Time{}
	b.consecutiveFailures = 0
	b.currentBackoff = b.cfg.MinBackoff
}

// Stats is the introspection view of one circuit.
type Stats struct {
	Provider            string    `json:"provider"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalTrips          int       `json:"total_trips"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	RetryBackoff        string    `json:"retry_backoff"`
}

// Stats returns a snapshot of the circuit.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Provider:            b.name,
		State:               b.stateLocked(),
		ConsecutiveFailures: b.consecutiveFailures,
		TotalTrips:          b.totalTrips,
		OpenedAt:            b.openedAt,
		LastFailure:         b.lastFailure,
		RetryBackoff:        b.currentBackoff.String(),
	}
}

// Set holds one circuit per provider, created lazily under a shared config.
type Set struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewSet creates an empty circuit set.
func NewSet(cfg Config) *Set {
	return &Set{
		cfg:      cfg.withDefaults(),
		log:      logger.Get().With("component", "breaker"),
		breakers: make(map[string]*Breaker),
	}
}

// For returns the circuit for a provider, creating it closed on first use.
func (s *Set) For(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[name]
	if !ok {
		b = New(name, s.cfg, s.log)
		s.breakers[name] = b
	}
	return b
}

// Stats snapshots every known circuit, keyed by provider name.
func (s *Set) Stats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]Stats, len(s.breakers))
	for name, b := range s.breakers {
		stats[name] = b.Stats()
	}
	return stats
}

// AllClosed reports whether no circuit is currently open or half-open.
func (s *Set) AllClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.breakers {
		if !b.Healthy() {
			return false
		}
	}
	return true
}

// Package breaker implements the circuit breaker guarding store commits.
//
// States:
//   - closed    (normal) → consecutive failures reach the threshold → open
//   - open      (failing fast) → after ResetTimeout → half-open
//   - half-open (probing) → Probes successes → closed, any failure → open
//
// While open, commits fail immediately with ErrOpen instead of waiting out
// the persist retry budget on a store that is known to be down.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/infra/metrics"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a breaker. Zero fields take defaults.
type Config struct {
	Threshold    int           // failures that trip the breaker (default 5)
	ResetTimeout time.Duration // time open before probing (default 30s)
	Probes       int           // successes in half-open that close it (default 2)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    5,
		ResetTimeout: 30 * time.Second,
		Probes:       2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.Probes <= 0 {
		c.Probes = d.Probes
	}
	return c
}

// Breaker is a thread-safe circuit breaker.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	trippedAt time.Time
	trips     int
	now       func() time.Time
	log       *log.Entry
}

// New creates a closed breaker.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		cfg: cfg.withDefaults(),
		now: time.Now,
		log: log.WithFields(log.Fields{"component": "breaker", "breaker": name}),
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	if b.state == Open {
		return ErrOpen
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.set(Closed)
			b.log.Info("store recovered, breaker closed")
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records a failed call and may trip the breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Trips returns how many times the breaker opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// advance moves open to half-open once the reset timeout passed.
// Callers hold mu.
func (b *Breaker) advance() {
	if b.state == Open && b.now().Sub(b.trippedAt) >= b.cfg.ResetTimeout {
		b.set(HalfOpen)
	}
}

func (b *Breaker) trip() {
	b.set(Open)
	b.trippedAt = b.now()
	b.trips++
	metrics.StoreBreakerTrips.Inc()
	b.log.WithField("retry_in", b.cfg.ResetTimeout).Warn("store failing, breaker open")
}

func (b *Breaker) set(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
	metrics.StoreBreakerState.Set(float64(s))
}

// ─── Guarded calls ──────────────────────────────────────────────────────────

// Do runs fn if the breaker allows it and records the result. A rejected
// call returns an error wrapping ErrOpen without calling fn. Cancellation
// by the caller is not held against the guarded resource.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.Success()
	case errors.Is(err, context.Canceled):
	default:
		b.Failure()
	}
	return err
}

package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T) (*Breaker, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
	b := New("test", Config{Threshold: 3, ResetTimeout: time.Second, Probes: 2})
	b.now = clock.now
	return b, clock
}

func trip(b *Breaker) {
	for i := 0; i < b.cfg.Threshold; i++ {
		b.Failure()
	}
}

var errStore = errors.New("store down")

// ─── State transitions ──────────────────────────────────────────────────────

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half_open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConfig_Defaults(t *testing.T) {
	b := New("test", Config{})
	if b.cfg != DefaultConfig() {
		t.Errorf("expected defaults %+v, got %+v", DefaultConfig(), b.cfg)
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := newTestBreaker(t)
	if b.State() != Closed {
		t.Errorf("expected closed, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("closed breaker should allow, got %v", err)
	}
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.Failure()
	b.Failure()
	if b.State() != Closed {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}
	b.Failure()
	if b.State() != Open {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if b.Trips() != 1 {
		t.Errorf("expected 1 trip, got %d", b.Trips())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	if b.State() != Closed {
		t.Errorf("failures are consecutive; expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, clock := newTestBreaker(t)
	trip(b)

	clock.advance(999 * time.Millisecond)
	if b.State() != Open {
		t.Fatalf("expected open before the timeout, got %s", b.State())
	}
	clock.advance(time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open after the timeout, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("half-open breaker should allow probes, got %v", err)
	}
}

func TestBreaker_HalfOpenProbesClose(t *testing.T) {
	b, clock := newTestBreaker(t)
	trip(b)
	clock.advance(time.Second)

	b.Success()
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open after one probe, got %s", b.State())
	}
	b.Success()
	if b.State() != Closed {
		t.Errorf("expected closed after two probes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t)
	trip(b)
	clock.advance(time.Second)

	b.Failure()
	if b.State() != Open {
		t.Errorf("expected open after a failed probe, got %s", b.State())
	}
	if b.Trips() != 2 {
		t.Errorf("expected 2 trips, got %d", b.Trips())
	}
}

// ─── Do ─────────────────────────────────────────────────────────────────────

func TestDo_RecordsResults(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Do(ctx, func(context.Context) error { return errStore }); !errors.Is(err, errStore) {
			t.Fatalf("expected the call's error, got %v", err)
		}
	}

	calls := 0
	err := b.Do(ctx, func(context.Context) error { calls++; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("open breaker must not call fn, got %d calls", calls)
	}
}

func TestDo_IgnoresCancellation(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.Do(ctx, func(context.Context) error { return context.Canceled })
	}
	if b.State() != Closed {
		t.Errorf("cancelled calls should not trip the breaker, got %s", b.State())
	}
}

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ritim-app/ritim/internal/app/engagement"
)

type countingRoller struct {
	calls          int
	rolled, failed int
}

func (c *countingRoller) Rollover(context.Context) (int, int) {
	c.calls++
	return c.rolled, c.failed
}

func TestRolloverSpec(t *testing.T) {
	tests := []struct {
		cutoff time.Duration
		want   string
	}{
		{2 * time.Hour, "5 2 * * *"},
		{0, "5 0 * * *"},
		{4*time.Hour + 30*time.Minute, "35 4 * * *"},
		{23*time.Hour + 58*time.Minute, "3 0 * * *"},
	}
	for _, tt := range tests {
		if got := RolloverSpec(tt.cutoff); got != tt.want {
			t.Errorf("RolloverSpec(%s) = %q, want %q", tt.cutoff, got, tt.want)
		}
	}
}

func TestRolloverSpec_ParsesAndFiresAfterCutoff(t *testing.T) {
	loc := time.FixedZone("TRT", 3*60*60)
	sched, err := cron.ParseStandard(RolloverSpec(engagement.DefaultCutoff))
	if err != nil {
		t.Fatalf("ParseStandard() error: %v", err)
	}
	next := sched.Next(time.Date(2025, 7, 1, 12, 0, 0, 0, loc))
	want := time.Date(2025, 7, 2, 2, 5, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("expected next run %s, got %s", want, next)
	}
}

func TestScheduler_RunRollover(t *testing.T) {
	roller := &countingRoller{rolled: 3, failed: 1}
	s := NewScheduler(roller, engagement.NewClock(time.UTC))

	s.RunRollover(context.Background())
	if roller.calls != 1 {
		t.Errorf("expected 1 rollover call, got %d", roller.calls)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&countingRoller{}, engagement.Clock{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("expected 1 cron entry, got %d", len(s.cron.Entries()))
	}
	s.Stop()
}

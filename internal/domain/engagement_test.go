package domain

import (
	"errors"
	"fmt"
	"testing"
)

// ─── Aggregate Tests ────────────────────────────────────────────────────────

func TestNewUserProgression_Defaults(t *testing.T) {
	p := NewUserProgression()
	if p.Level != 1 || p.XP != 0 {
		t.Errorf("expected level 1 with 0 XP, got %d / %d", p.Level, p.XP)
	}
	if p.Achievements == nil || p.Streaks.Habits == nil {
		t.Error("collections must be non-nil")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestUserProgression_CloneIsDeep(t *testing.T) {
	p := NewUserProgression()
	p.Achievements = append(p.Achievements, "first_task")
	p.Streaks.Habits["read"] = StreakRecord{Current: 2, Longest: 2, LastDate: "2025-07-01"}
	p.WeeklyPass = WeeklyPass{WeekKey: "2025-W27", Used: true, LastUsedDay: "2025-07-01",
		Snapshot: &PassSnapshot{Day: "2025-07-01", PrevHabits: map[string]StreakRecord{"read": {Current: 1, Longest: 1}}}}

	c := p.Clone()
	c.Achievements[0] = "changed"
	c.Streaks.Habits["read"] = StreakRecord{}
	c.WeeklyPass.Snapshot.Day = "changed"
	c.WeeklyPass.Snapshot.PrevHabits["read"] = StreakRecord{}

	if p.Achievements[0] != "first_task" {
		t.Error("clone shares achievements")
	}
	if p.Streaks.Habits["read"].Current != 2 {
		t.Error("clone shares habit streaks")
	}
	if p.WeeklyPass.Snapshot.Day != "2025-07-01" || p.WeeklyPass.Snapshot.PrevHabits["read"].Current != 1 {
		t.Error("clone shares the pass snapshot")
	}
}

func TestUserProgression_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *UserProgression)
	}{
		{"negative xp", func(p *UserProgression) { p.XP = -1 }},
		{"negative counter", func(p *UserProgression) { p.PomodoroSessions = -1 }},
		{"daily longest below current", func(p *UserProgression) { p.Streaks.Daily = StreakRecord{Current: 3, Longest: 2} }},
		{"task streak negative", func(p *UserProgression) { p.Streaks.Tasks = StreakRecord{Current: -1} }},
		{"habit longest below current", func(p *UserProgression) { p.Streaks.Habits["x"] = StreakRecord{Current: 5, Longest: 1} }},
		{"used pass without snapshot", func(p *UserProgression) { p.WeeklyPass.Used = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewUserProgression()
			tt.mutate(p)
			if err := p.Validate(); !errors.Is(err, ErrCorruptState) {
				t.Errorf("expected ErrCorruptState, got %v", err)
			}
		})
	}
}

func TestUserProgression_Normalize(t *testing.T) {
	p := &UserProgression{}
	p.Normalize()
	if p.Achievements == nil || p.Streaks.Habits == nil {
		t.Error("Normalize should fill nil collections")
	}
	if p.HasAchievement("first_task") {
		t.Error("empty progression has no achievements")
	}
}

// ─── Reason Tests ───────────────────────────────────────────────────────────

func TestReason_IsError(t *testing.T) {
	err := fmt.Errorf("use pass: %w", ReasonWeekendNotAllowed)
	if !errors.Is(err, ReasonWeekendNotAllowed) {
		t.Error("wrapped reason should match with errors.Is")
	}
	var r Reason
	if !errors.As(err, &r) || r != ReasonWeekendNotAllowed {
		t.Errorf("expected errors.As to recover the reason, got %q", r)
	}
	if ReasonNotToday.Error() != "not_today" {
		t.Errorf("unexpected error string %q", ReasonNotToday.Error())
	}
}

func TestReason_Messages(t *testing.T) {
	reasons := []Reason{
		ReasonInsufficientXP, ReasonAlreadyUsedThisWeek, ReasonWeekendNotAllowed,
		ReasonNotUsed, ReasonDifferentWeek, ReasonNotToday,
		ReasonNotEnoughXP, ReasonNoLand, ReasonWrongOrder, ReasonAlreadyPurchased,
	}
	for _, r := range reasons {
		if r.Message() == "" || r.Message() == string(r) {
			t.Errorf("reason %s has no message", r)
		}
	}
}

func TestDayPath(t *testing.T) {
	if got := DayPath("2025-07-01"); got != "days/2025-07-01" {
		t.Errorf("expected days/2025-07-01, got %s", got)
	}
}

package engagement_test

import (
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
)

// istanbul is a fixed +03:00 zone so tests do not depend on tzdata.
var istanbul = time.FixedZone("TRT", 3*60*60)

var testClock = engagement.Clock{Location: istanbul, Cutoff: 2 * time.Hour}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, istanbul)
}

// ═══════════════════════════════════════════════════════════════════════════
// Clock Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestClock_DayKeyCutoff(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{at(2025, 7, 2, 0, 0), "2025-07-01"},
		{at(2025, 7, 2, 1, 59).Add(59 * time.Second), "2025-07-01"},
		{at(2025, 7, 2, 2, 0), "2025-07-02"},
		{at(2025, 7, 2, 12, 0), "2025-07-02"},
		{at(2025, 7, 2, 23, 59), "2025-07-02"},
		{at(2025, 1, 1, 1, 0), "2024-12-31"},
	}
	for _, tt := range tests {
		if got := testClock.DayKey(tt.at); got != tt.want {
			t.Errorf("DayKey(%s) = %s, want %s", tt.at.Format(time.RFC3339), got, tt.want)
		}
	}
}

func TestClock_DayKeyUsesLocation(t *testing.T) {
	// 23:30 UTC is 02:30 the next day in Istanbul.
	instant := time.Date(2025, 7, 1, 23, 30, 0, 0, time.UTC)
	if got := testClock.DayKey(instant); got != "2025-07-02" {
		t.Errorf("expected 2025-07-02, got %s", got)
	}
}

func TestClock_Deterministic(t *testing.T) {
	instant := at(2025, 3, 9, 1, 15)
	for i := 0; i < 3; i++ {
		if testClock.DayKey(instant) != "2025-03-08" || testClock.WeekKey(instant) != "2025-W10" {
			t.Fatalf("clock is not a pure function of its input")
		}
	}
}

func TestClock_PreviousDayKey(t *testing.T) {
	if got := testClock.PreviousDayKey(at(2025, 7, 2, 12, 0)); got != "2025-07-01" {
		t.Errorf("expected 2025-07-01, got %s", got)
	}
	// Before the cutoff, "yesterday" is two calendar days back.
	if got := testClock.PreviousDayKey(at(2025, 7, 2, 1, 0)); got != "2025-06-30" {
		t.Errorf("expected 2025-06-30, got %s", got)
	}
}

func TestClock_WeekKey(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{at(2025, 6, 30, 12, 0), "2025-W27"}, // Monday
		{at(2025, 6, 30, 1, 0), "2025-W26"},  // Monday before cutoff is still Sunday
		{at(2025, 7, 6, 23, 0), "2025-W27"},  // Sunday
		{at(2024, 12, 30, 12, 0), "2025-W01"},
		{at(2021, 1, 1, 12, 0), "2020-W53"},
	}
	for _, tt := range tests {
		if got := testClock.WeekKey(tt.at); got != tt.want {
			t.Errorf("WeekKey(%s) = %s, want %s", tt.at.Format(time.RFC3339), got, tt.want)
		}
	}
}

func TestClock_IsWeekday(t *testing.T) {
	tests := []struct {
		at   time.Time
		want bool
	}{
		{at(2025, 7, 1, 12, 0), true},  // Tuesday
		{at(2025, 7, 5, 12, 0), false}, // Saturday
		{at(2025, 7, 5, 1, 30), true},  // Saturday 01:30 is still Friday
		{at(2025, 7, 7, 1, 30), false}, // Monday 01:30 is still Sunday
		{at(2025, 7, 7, 2, 0), true},
	}
	for _, tt := range tests {
		if got := testClock.IsWeekday(tt.at); got != tt.want {
			t.Errorf("IsWeekday(%s) = %v, want %v", tt.at.Format(time.RFC3339), got, tt.want)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int64
		want int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
		{10000, 11},
	}
	for _, tt := range tests {
		if got := engagement.LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := engagement.LevelForXP(0)
	for xp := int64(1); xp <= 50000; xp++ {
		lvl := engagement.LevelForXP(xp)
		if lvl < prev {
			t.Fatalf("level dropped from %d to %d at xp %d", prev, lvl, xp)
		}
		prev = lvl
	}
}

func TestXPForLevel_Boundaries(t *testing.T) {
	if engagement.XPForLevel(1) != 0 || engagement.XPForLevel(0) != 0 {
		t.Error("levels ≤ 1 should need 0 XP")
	}
	for level := 2; level <= 500; level++ {
		need := engagement.XPForLevel(level)
		if got := engagement.LevelForXP(need); got != level {
			t.Errorf("LevelForXP(%d) = %d, want %d", need, got, level)
		}
		if got := engagement.LevelForXP(need - 1); got != level-1 {
			t.Errorf("LevelForXP(%d) = %d, want %d", need-1, got, level-1)
		}
	}
}

func TestLevel_ProgressPct(t *testing.T) {
	// Level 2 spans 100..400.
	pct := engagement.ProgressPct(250)
	if pct < 49.9 || pct > 50.1 {
		t.Errorf("expected ~50%%, got %.2f", pct)
	}
	if engagement.ProgressPct(0) != 0 {
		t.Errorf("expected 0%% at xp 0, got %.2f", engagement.ProgressPct(0))
	}
}

func TestLevel_XPToNextLevel(t *testing.T) {
	if got := engagement.XPToNextLevel(150); got != 250 {
		t.Errorf("expected 250, got %d", got)
	}
	if got := engagement.XPToNextLevel(0); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestRankForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{-3, "Seedling"},
		{0, "Seedling"},
		{1, "Seedling"},
		{4, "Seedling"},
		{5, "Sprout"},
		{14, "Sapling"},
		{15, "Young Tree"},
		{29, "Grove Keeper"},
		{30, "Forest Sage"},
		{250, "Forest Sage"},
	}
	for _, tt := range tests {
		if got := engagement.RankForLevel(tt.level).Name; got != tt.want {
			t.Errorf("RankForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestRanks_Ascending(t *testing.T) {
	ranks := engagement.Ranks()
	if ranks[0].MinLevel != 1 {
		t.Errorf("first rank must start at level 1, got %d", ranks[0].MinLevel)
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i].MinLevel <= ranks[i-1].MinLevel {
			t.Errorf("ranks not ascending at %d", i)
		}
	}
	if _, ok := engagement.NextRank(30); ok {
		t.Error("top rank should have no next rank")
	}
	if next, ok := engagement.NextRank(3); !ok || next.Name != "Sprout" {
		t.Errorf("expected Sprout after level 3, got %+v", next)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestApplyDay_Extension(t *testing.T) {
	rec := domain.StreakRecord{Current: 3, Longest: 5, LastDate: "2025-06-30"}
	got, change := engagement.ApplyDay(rec, "2025-07-01", "2025-06-30")

	want := domain.StreakRecord{Current: 4, Longest: 5, LastDate: "2025-07-01"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if change.Kind != domain.TransitionExtended {
		t.Errorf("expected extended, got %s", change.Kind)
	}
}

func TestApplyDay_ResetOnGap(t *testing.T) {
	rec := domain.StreakRecord{Current: 5, Longest: 5, LastDate: "2025-06-28"}
	got, change := engagement.ApplyDay(rec, "2025-07-01", "2025-06-30")

	want := domain.StreakRecord{Current: 1, Longest: 5, LastDate: "2025-07-01"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if change.Kind != domain.TransitionReset {
		t.Errorf("expected reset, got %s", change.Kind)
	}
	if change.Previous != 5 {
		t.Errorf("expected previous 5, got %d", change.Previous)
	}
}

func TestApplyDay_Idempotent(t *testing.T) {
	states := []domain.StreakRecord{
		{},
		{Current: 1, Longest: 1, LastDate: "2025-06-30"},
		{Current: 7, Longest: 9, LastDate: "2025-06-01"},
		{Current: 2, Longest: 4, LastDate: "2025-07-01"},
	}
	for _, rec := range states {
		once, _ := engagement.ApplyDay(rec, "2025-07-01", "2025-06-30")
		twice, change := engagement.ApplyDay(once, "2025-07-01", "2025-06-30")
		if once != twice {
			t.Errorf("applying twice changed %+v into %+v", once, twice)
		}
		if change.Kind != domain.TransitionUnchanged {
			t.Errorf("second application should be unchanged, got %s", change.Kind)
		}
	}
}

func TestApplyDay_FirstEver(t *testing.T) {
	got, change := engagement.ApplyDay(domain.StreakRecord{}, "2025-07-01", "2025-06-30")
	if got.Current != 1 || got.Longest != 1 || got.LastDate != "2025-07-01" {
		t.Errorf("unexpected first record %+v", got)
	}
	if change.Kind != domain.TransitionStarted {
		t.Errorf("expected started, got %s", change.Kind)
	}
}

func TestApplyDay_OnlyOnePerDay(t *testing.T) {
	rec := domain.StreakRecord{}
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		today := day.AddDate(0, 0, i).Format("2006-01-02")
		yesterday := day.AddDate(0, 0, i-1).Format("2006-01-02")
		before := rec.Current
		for j := 0; j < 3; j++ {
			rec, _ = engagement.ApplyDay(rec, today, yesterday)
		}
		if rec.Current != before+1 {
			t.Fatalf("day %d: expected current %d, got %d", i, before+1, rec.Current)
		}
		if !rec.Valid() {
			t.Fatalf("day %d: invalid record %+v", i, rec)
		}
	}
}

func TestLiveCurrent(t *testing.T) {
	rec := domain.StreakRecord{Current: 4, Longest: 4, LastDate: "2025-06-30"}
	if got := engagement.LiveCurrent(rec, "2025-07-01", "2025-06-30"); got != 4 {
		t.Errorf("yesterday's streak should still show, got %d", got)
	}
	if got := engagement.LiveCurrent(rec, "2025-07-02", "2025-07-01"); got != 0 {
		t.Errorf("broken streak should show 0, got %d", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Catalog Tests
// ═══════════════════════════════════════════════════════════════════════════

func ids(defs []domain.AchievementDef) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, d := range defs {
		out[d.ID] = true
	}
	return out
}

func TestEvaluate_NeverReawards(t *testing.T) {
	facts := domain.Facts{TotalTasksCompleted: 5, TaskStreak: 3, Level: 5}
	first := ids(engagement.Evaluate(facts, nil))
	for _, want := range []string{"first_task", "task_streak_3", "level_5"} {
		if !first[want] {
			t.Errorf("expected %s to unlock", want)
		}
	}

	unlocked := []string{"first_task", "task_streak_3", "level_5"}
	for _, d := range engagement.Evaluate(facts, unlocked) {
		if slices.Contains(unlocked, d.ID) {
			t.Errorf("%s re-awarded", d.ID)
		}
	}
}

func TestEvaluate_TimeOfDay(t *testing.T) {
	tests := []struct {
		hour  int
		early bool
		night bool
	}{
		{1, false, true},
		{2, true, false},
		{6, true, false},
		{7, false, false},
		{12, false, false},
		{21, false, false},
		{22, false, true},
		{23, false, true},
	}
	for _, tt := range tests {
		got := ids(engagement.Evaluate(domain.Facts{TaskJustCompleted: true, HourOfDay: tt.hour, HasHour: true}, nil))
		if got["early_bird"] != tt.early || got["night_owl"] != tt.night {
			t.Errorf("hour %d: early_bird=%v night_owl=%v", tt.hour, got["early_bird"], got["night_owl"])
		}
	}

	// Time-of-day only counts for task completions.
	got := ids(engagement.Evaluate(domain.Facts{HourOfDay: 5, HasHour: true}, nil))
	if got["early_bird"] {
		t.Error("early_bird should need a task completion")
	}
}

func TestEvaluate_DayTallies(t *testing.T) {
	got := ids(engagement.Evaluate(domain.Facts{TasksDoneToday: 3, TasksTotalToday: 3, HabitsDoneToday: 1, HabitsTotalToday: 2}, nil))
	if !got["perfectionist"] {
		t.Error("expected perfectionist with 3/3 tasks")
	}
	if got["habit_master"] {
		t.Error("habit_master should need every habit done")
	}

	got = ids(engagement.Evaluate(domain.Facts{}, nil))
	if got["perfectionist"] || got["habit_master"] {
		t.Error("empty day lists must not unlock completion achievements")
	}
}

func TestCatalog_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range engagement.Catalog() {
		if seen[d.ID] {
			t.Errorf("duplicate achievement id %s", d.ID)
		}
		seen[d.ID] = true
		if d.RewardXP < 0 {
			t.Errorf("%s has negative reward", d.ID)
		}
	}
	if len(seen) != 15 {
		t.Errorf("expected 15 achievements, got %d", len(seen))
	}
}

func TestProgress(t *testing.T) {
	p, ok := engagement.Progress("pomodoro_master", domain.Facts{PomodoroSessions: 40}, false)
	if !ok || p.Value != 25 || p.Target != 25 {
		t.Errorf("expected capped 25/25, got %+v", p)
	}

	p, _ = engagement.Progress("task_streak_7", domain.Facts{TaskStreak: 2}, false)
	if p.Value != 2 || p.Target != 7 {
		t.Errorf("expected 2/7, got %+v", p)
	}

	p, _ = engagement.Progress("night_owl", domain.Facts{}, true)
	if p.Value != p.Target {
		t.Errorf("unlocked achievement should be complete, got %+v", p)
	}

	if _, ok := engagement.Progress("nope", domain.Facts{}, false); ok {
		t.Error("unknown id should not resolve")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Weekly Pass Eligibility Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestCanUsePass(t *testing.T) {
	p := domain.NewUserProgression()
	wednesday := at(2025, 7, 2, 12, 0)

	if e := engagement.CanUsePass(p, testClock, wednesday); !e.OK {
		t.Errorf("fresh user should be eligible on a weekday, got %s", e.Reason)
	}
	if e := engagement.CanUsePass(p, testClock, at(2025, 7, 5, 12, 0)); e.Reason != domain.ReasonWeekendNotAllowed {
		t.Errorf("expected weekend_not_allowed, got %+v", e)
	}

	p.WeeklyPass = domain.WeeklyPass{WeekKey: "2025-W27", Used: true, LastUsedDay: "2025-07-01",
		Snapshot: &domain.PassSnapshot{Day: "2025-07-01"}}
	if e := engagement.CanUsePass(p, testClock, wednesday); e.Reason != domain.ReasonAlreadyUsedThisWeek {
		t.Errorf("expected already_used_this_week, got %+v", e)
	}
	// Weekend wins over prior use.
	if e := engagement.CanUsePass(p, testClock, at(2025, 7, 6, 12, 0)); e.Reason != domain.ReasonWeekendNotAllowed {
		t.Errorf("expected weekend_not_allowed, got %+v", e)
	}
	// A new ISO week makes it usable again without a rollover.
	if e := engagement.CanUsePass(p, testClock, at(2025, 7, 7, 12, 0)); !e.OK {
		t.Errorf("expected eligible in the next week, got %s", e.Reason)
	}
}

func TestCanUndoPass(t *testing.T) {
	p := domain.NewUserProgression()
	wednesday := at(2025, 7, 2, 12, 0)

	e, err := engagement.CanUndoPass(p, testClock, wednesday)
	if err != nil || e.Reason != domain.ReasonNotUsed {
		t.Errorf("expected not_used, got %+v %v", e, err)
	}

	p.WeeklyPass = domain.WeeklyPass{WeekKey: "2025-W27", Used: true, LastUsedDay: "2025-07-02",
		Snapshot: &domain.PassSnapshot{Day: "2025-07-02"}}
	if e, _ := engagement.CanUndoPass(p, testClock, wednesday); !e.OK {
		t.Errorf("expected same-day undo to be allowed, got %s", e.Reason)
	}
	if e, _ := engagement.CanUndoPass(p, testClock, at(2025, 7, 3, 12, 0)); e.Reason != domain.ReasonNotToday {
		t.Errorf("expected not_today, got %+v", e)
	}
	if e, _ := engagement.CanUndoPass(p, testClock, at(2025, 7, 7, 12, 0)); e.Reason != domain.ReasonDifferentWeek {
		t.Errorf("expected different_week, got %+v", e)
	}
	// 01:00 Thursday is still Wednesday's logical day.
	if e, _ := engagement.CanUndoPass(p, testClock, at(2025, 7, 3, 1, 0)); !e.OK {
		t.Errorf("expected undo before the cutoff to be allowed, got %s", e.Reason)
	}
}

func TestCanUndoPass_MissingSnapshotIsCorrupt(t *testing.T) {
	p := domain.NewUserProgression()
	p.WeeklyPass = domain.WeeklyPass{WeekKey: "2025-W27", Used: true, LastUsedDay: "2025-07-02"}

	_, err := engagement.CanUndoPass(p, testClock, at(2025, 7, 2, 12, 0))
	if !errors.Is(err, domain.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestCanUndoPass_MissingLastUsedDayIsCorrupt(t *testing.T) {
	p := domain.NewUserProgression()
	p.WeeklyPass = domain.WeeklyPass{
		WeekKey:  "2025-W27",
		Used:     true,
		Snapshot: &domain.PassSnapshot{Day: "2025-07-02"},
	}

	_, err := engagement.CanUndoPass(p, testClock, at(2025, 7, 2, 12, 0))
	if !errors.Is(err, domain.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

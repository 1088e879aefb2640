// Package domain holds the pure types of the ritim progression engine.
// The engagement engine drives the daily loop through XP, levels, ranks,
// achievements, streaks and the weekly pass.
package domain

import (
	"fmt"
	"maps"
	"slices"
)

// ─── Streak Types ───────────────────────────────────────────────────────────

// StreakRecord is one streak counter: consecutive logical days with a
// qualifying action. LastDate is a day key ("2025-07-01"), empty when the
// streak has never been touched.
type StreakRecord struct {
	Current  int    `json:"current"`
	Longest  int    `json:"longest"`
	LastDate string `json:"lastDate,omitempty"`
}

// Valid reports whether longest >= current >= 0.
func (r StreakRecord) Valid() bool {
	return r.Current >= 0 && r.Longest >= r.Current
}

// Streaks groups the three independent streak categories.
type Streaks struct {
	Daily  StreakRecord            `json:"daily"`
	Tasks  StreakRecord            `json:"tasks"`
	Habits map[string]StreakRecord `json:"habits"`
}

// StreakType names a streak category in events and metrics.
type StreakType string

const (
	StreakDaily StreakType = "daily"
	StreakTasks StreakType = "tasks"
	StreakHabit StreakType = "habit"
)

// TransitionKind is the branch the day-transition rule took.
type TransitionKind string

const (
	TransitionUnchanged TransitionKind = "unchanged" // same logical day again
	TransitionExtended  TransitionKind = "extended"  // consecutive day
	TransitionStarted   TransitionKind = "started"   // first completion, or restart from zero
	TransitionReset     TransitionKind = "reset"     // gap detected, a live streak was broken
)

// StreakChange describes one application of the day-transition rule.
type StreakChange struct {
	Kind     TransitionKind `json:"kind"`
	Previous int            `json:"previous"`
	Current  int            `json:"current"`
	Longest  int            `json:"longest"`
}

// ─── Weekly Pass ────────────────────────────────────────────────────────────

// PassSnapshot captures streak values right before a weekly pass was used,
// so the pass can be undone the same day by restoring them verbatim.
type PassSnapshot struct {
	Day        string                  `json:"day"`
	PrevDaily  StreakRecord            `json:"prevDaily"`
	PrevTasks  StreakRecord            `json:"prevTasks"`
	PrevHabits map[string]StreakRecord `json:"prevHabits"`
}

// WeeklyPass is the once-per-ISO-week streak protection state.
type WeeklyPass struct {
	WeekKey     string        `json:"weekKey,omitempty"`
	Used        bool          `json:"used"`
	LastUsedDay string        `json:"lastUsedDay,omitempty"`
	Snapshot    *PassSnapshot `json:"snapshot"`
}

// Eligibility is the answer to a can-use / can-undo question.
type Eligibility struct {
	OK     bool   `json:"ok"`
	Reason Reason `json:"reason,omitempty"`
}

// ─── Rank ───────────────────────────────────────────────────────────────────

// Rank is a coarse progression tier derived from level.
type Rank struct {
	MinLevel int    `json:"min_level"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
}

// ─── Aggregate ──────────────────────────────────────────────────────────────

// UserProgression is the persisted per-user aggregate. Level and Rank are a
// cache of values derived from XP; they are recomputed on every load and
// every mutation and never trusted from storage.
type UserProgression struct {
	XP                   int64      `json:"xp"`
	Level                int        `json:"level"`
	Rank                 string     `json:"rank"`
	Achievements         []string   `json:"achievements"`
	Streaks              Streaks    `json:"streaks"`
	WeeklyPass           WeeklyPass `json:"weeklyPass"`
	TotalTasksCompleted  int64      `json:"totalTasksCompleted"`
	TotalHabitsCompleted int64      `json:"totalHabitsCompleted"`
	PomodoroSessions     int64      `json:"pomodoroSessions"`
}

// NewUserProgression returns the zero-valued defaults a user starts with.
func NewUserProgression() *UserProgression {
	return &UserProgression{
		Level:        1,
		Achievements: []string{},
		Streaks:      Streaks{Habits: map[string]StreakRecord{}},
	}
}

// HasAchievement reports whether id is already unlocked.
func (p *UserProgression) HasAchievement(id string) bool {
	return slices.Contains(p.Achievements, id)
}

// Clone returns a deep copy, safe to mutate without touching p.
func (p *UserProgression) Clone() *UserProgression {
	c := *p
	c.Achievements = slices.Clone(p.Achievements)
	if c.Achievements == nil {
		c.Achievements = []string{}
	}
	c.Streaks.Habits = cloneHabits(p.Streaks.Habits)
	if p.WeeklyPass.Snapshot != nil {
		snap := *p.WeeklyPass.Snapshot
		snap.PrevHabits = cloneHabits(p.WeeklyPass.Snapshot.PrevHabits)
		c.WeeklyPass.Snapshot = &snap
	}
	return &c
}

// Normalize fills nil collections left by decoding partial documents.
func (p *UserProgression) Normalize() {
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	if p.Streaks.Habits == nil {
		p.Streaks.Habits = map[string]StreakRecord{}
	}
}

// Validate checks the structural invariants of the aggregate. A failure is
// a corruption signal, never an expected outcome.
func (p *UserProgression) Validate() error {
	if p.XP < 0 {
		return fmt.Errorf("%w: negative xp %d", ErrCorruptState, p.XP)
	}
	if p.TotalTasksCompleted < 0 || p.TotalHabitsCompleted < 0 || p.PomodoroSessions < 0 {
		return fmt.Errorf("%w: negative counter", ErrCorruptState)
	}
	if !p.Streaks.Daily.Valid() {
		return fmt.Errorf("%w: daily streak %+v", ErrCorruptState, p.Streaks.Daily)
	}
	if !p.Streaks.Tasks.Valid() {
		return fmt.Errorf("%w: task streak %+v", ErrCorruptState, p.Streaks.Tasks)
	}
	for id, h := range p.Streaks.Habits {
		if !h.Valid() {
			return fmt.Errorf("%w: habit %q streak %+v", ErrCorruptState, id, h)
		}
	}
	if p.WeeklyPass.Used && p.WeeklyPass.Snapshot == nil {
		return fmt.Errorf("%w: weekly pass used without snapshot", ErrCorruptState)
	}
	return nil
}

func cloneHabits(m map[string]StreakRecord) map[string]StreakRecord {
	if m == nil {
		return map[string]StreakRecord{}
	}
	return maps.Clone(m)
}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatTasks   AchievementCategory = "tasks"
	CatHabits  AchievementCategory = "habits"
	CatStreaks AchievementCategory = "streaks"
	CatFocus   AchievementCategory = "focus"
	CatTime    AchievementCategory = "time"
	CatMastery AchievementCategory = "mastery"
)

// AchievementDef defines a single achievement and the predicate unlocking it.
type AchievementDef struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    AchievementCategory `json:"category"`
	Icon        string              `json:"icon"`
	RewardXP    int64               `json:"reward_xp"`
	Target      int                 `json:"target"`
	Predicate   func(Facts) bool    `json:"-"`
	Measure     func(Facts) int     `json:"-"` // progress toward Target; nil for one-shot events
}

// AchievementProgress is how far a user is toward one achievement.
type AchievementProgress struct {
	Value  int    `json:"value"`
	Target int    `json:"target"`
	Hint   string `json:"hint"`
}

// Facts is the snapshot of progression state fed to achievement predicates.
// Day tallies are zero when the caller did not report them.
type Facts struct {
	TasksDoneToday      int
	TasksTotalToday     int
	HabitsDoneToday     int
	HabitsTotalToday    int
	TaskJustCompleted   bool
	HourOfDay           int
	HasHour             bool
	DailyStreak         int
	TaskStreak          int
	BestHabitStreak     int
	TotalTasksCompleted int64
	PomodoroSessions    int64
	Level               int
	WeeklyCompletionPct float64
}

// DayTally is what the UI knows about today's list when reporting a completion.
type DayTally struct {
	Done  int `json:"done_today"`
	Total int `json:"total_today"`
}

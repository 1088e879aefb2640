package engagement

import (
	"slices"

	"github.com/ritim-app/ritim/internal/domain"
)

// Evaluate returns the achievements whose predicates hold for f and that are
// not already in unlocked. It never applies XP and never re-awards: the
// caller appends the returned IDs and grants their RewardXP in the same
// transition.
func Evaluate(f domain.Facts, unlocked []string) []domain.AchievementDef {
	var newlyUnlocked []domain.AchievementDef
	for _, def := range catalog {
		if slices.Contains(unlocked, def.ID) {
			continue
		}
		if def.Predicate != nil && def.Predicate(f) {
			newlyUnlocked = append(newlyUnlocked, def)
		}
	}
	return newlyUnlocked
}

// Progress reports how far f is toward the achievement id. One-shot
// achievements (no Measure) report 0 of 1 until unlocked.
func Progress(id string, f domain.Facts, unlocked bool) (domain.AchievementProgress, bool) {
	def, ok := LookupAchievement(id)
	if !ok {
		return domain.AchievementProgress{}, false
	}
	p := domain.AchievementProgress{Target: max(def.Target, 1), Hint: def.Description}
	switch {
	case unlocked:
		p.Value = p.Target
	case def.Measure != nil:
		p.Value = min(def.Measure(f), p.Target)
	}
	return p, true
}

// Catalog returns all achievement definitions (for display).
func Catalog() []domain.AchievementDef {
	return slices.Clone(catalog)
}

// LookupAchievement returns the definition for id.
func LookupAchievement(id string) (domain.AchievementDef, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return domain.AchievementDef{}, false
}

// ─── Achievement Definitions ────────────────────────────────────────────────

// Time-of-day windows, in local wall-clock hours.
const (
	earlyBirdFrom = 2 // the logical day starts at the cutoff
	earlyBirdTo   = 7
	nightOwlFrom  = 22
)

func isEarlyBird(f domain.Facts) bool {
	return f.TaskJustCompleted && f.HasHour && f.HourOfDay >= earlyBirdFrom && f.HourOfDay < earlyBirdTo
}

func isNightOwl(f domain.Facts) bool {
	return f.TaskJustCompleted && f.HasHour && (f.HourOfDay >= nightOwlFrom || f.HourOfDay < earlyBirdFrom)
}

var catalog = []domain.AchievementDef{
	// ── Tasks ─────────────────────────────────────────────────────────
	{
		ID: "first_task", Name: "First Step", Description: "Complete your first task",
		Category: domain.CatTasks, Icon: "🎯", RewardXP: 50, Target: 1,
		Predicate: func(f domain.Facts) bool { return f.TotalTasksCompleted > 0 },
		Measure:   func(f domain.Facts) int { return int(min(f.TotalTasksCompleted, 1)) },
	},
	{
		ID: "perfectionist", Name: "Perfectionist", Description: "Complete every task in a single day",
		Category: domain.CatTasks, Icon: "💎", RewardXP: 200, Target: 1,
		Predicate: func(f domain.Facts) bool {
			return f.TasksTotalToday > 0 && f.TasksDoneToday >= f.TasksTotalToday
		},
	},
	{
		ID: "productive_week", Name: "Productive Week", Description: "Average 80% or more over a week",
		Category: domain.CatTasks, Icon: "📈", RewardXP: 400, Target: 80,
		Predicate: func(f domain.Facts) bool { return f.WeeklyCompletionPct >= 80 },
		Measure:   func(f domain.Facts) int { return int(f.WeeklyCompletionPct) },
	},

	// ── Habits ────────────────────────────────────────────────────────
	{
		ID: "habit_master", Name: "Habit Master", Description: "Complete every habit in a single day",
		Category: domain.CatHabits, Icon: "👑", RewardXP: 150, Target: 1,
		Predicate: func(f domain.Facts) bool {
			return f.HabitsTotalToday > 0 && f.HabitsDoneToday >= f.HabitsTotalToday
		},
	},
	{
		ID: "habit_streak_7", Name: "Habit Champion", Description: "Keep one habit going for 7 days in a row",
		Category: domain.CatHabits, Icon: "🏆", RewardXP: 300, Target: 7,
		Predicate: func(f domain.Facts) bool { return f.BestHabitStreak >= 7 },
		Measure:   func(f domain.Facts) int { return f.BestHabitStreak },
	},

	// ── Streaks ───────────────────────────────────────────────────────
	{
		ID: "task_streak_3", Name: "Consistency", Description: "Complete tasks 3 days in a row",
		Category: domain.CatStreaks, Icon: "🔥", RewardXP: 100, Target: 3,
		Predicate: func(f domain.Facts) bool { return f.TaskStreak >= 3 },
		Measure:   func(f domain.Facts) int { return f.TaskStreak },
	},
	{
		ID: "task_streak_7", Name: "Weekly Hero", Description: "Complete tasks 7 days in a row",
		Category: domain.CatStreaks, Icon: "⭐", RewardXP: 250, Target: 7,
		Predicate: func(f domain.Facts) bool { return f.TaskStreak >= 7 },
		Measure:   func(f domain.Facts) int { return f.TaskStreak },
	},
	{
		ID: "daily_streak_3", Name: "Warming Up", Description: "Be active 3 days in a row",
		Category: domain.CatStreaks, Icon: "✨", RewardXP: 0, Target: 3,
		Predicate: func(f domain.Facts) bool { return f.DailyStreak >= 3 },
		Measure:   func(f domain.Facts) int { return f.DailyStreak },
	},
	{
		ID: "daily_streak_7", Name: "Full Week", Description: "Be active 7 days in a row",
		Category: domain.CatStreaks, Icon: "📅", RewardXP: 0, Target: 7,
		Predicate: func(f domain.Facts) bool { return f.DailyStreak >= 7 },
		Measure:   func(f domain.Facts) int { return f.DailyStreak },
	},
	{
		ID: "daily_streak_30", Name: "Unbroken Month", Description: "Be active 30 days in a row",
		Category: domain.CatStreaks, Icon: "🗓️", RewardXP: 0, Target: 30,
		Predicate: func(f domain.Facts) bool { return f.DailyStreak >= 30 },
		Measure:   func(f domain.Facts) int { return f.DailyStreak },
	},

	// ── Focus ─────────────────────────────────────────────────────────
	{
		ID: "pomodoro_master", Name: "Pomodoro Master", Description: "Finish 25 pomodoro sessions",
		Category: domain.CatFocus, Icon: "🍅", RewardXP: 300, Target: 25,
		Predicate: func(f domain.Facts) bool { return f.PomodoroSessions >= 25 },
		Measure:   func(f domain.Facts) int { return int(min(f.PomodoroSessions, 25)) },
	},

	// ── Time of day ───────────────────────────────────────────────────
	{
		ID: "early_bird", Name: "Early Bird", Description: "Complete a task before 07:00",
		Category: domain.CatTime, Icon: "🌅", RewardXP: 75, Target: 1,
		Predicate: isEarlyBird,
	},
	{
		ID: "night_owl", Name: "Night Owl", Description: "Complete a task after 22:00",
		Category: domain.CatTime, Icon: "🦉", RewardXP: 75, Target: 1,
		Predicate: isNightOwl,
	},

	// ── Mastery ───────────────────────────────────────────────────────
	{
		ID: "level_5", Name: "Experienced", Description: "Reach level 5",
		Category: domain.CatMastery, Icon: "🌟", RewardXP: 0, Target: 5,
		Predicate: func(f domain.Facts) bool { return f.Level >= 5 },
		Measure:   func(f domain.Facts) int { return f.Level },
	},
	{
		ID: "level_10", Name: "Expert", Description: "Reach level 10",
		Category: domain.CatMastery, Icon: "💫", RewardXP: 0, Target: 10,
		Predicate: func(f domain.Facts) bool { return f.Level >= 10 },
		Measure:   func(f domain.Facts) int { return f.Level },
	},
}

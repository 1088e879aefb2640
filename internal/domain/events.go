package domain

import "time"

// EventType names a domain event emitted to UI listeners.
type EventType string

const (
	EventAchievementsUnlocked EventType = "achievements_unlocked"
	EventStreakUpdated        EventType = "streak_updated"
	EventStreakReset          EventType = "streak_reset"
	EventLevelUp              EventType = "level_up"
	EventRankUp               EventType = "rank_up"
	EventPassUsed             EventType = "pass_used"
	EventPassUndone           EventType = "pass_undone"
)

// Event is a fire-and-forget notification about a committed mutation.
// Only the fields relevant to Type are set.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`

	// achievements_unlocked
	AchievementIDs []string `json:"achievement_ids,omitempty"`

	// streak_updated / streak_reset
	StreakType StreakType     `json:"streak_type,omitempty"`
	HabitID    string         `json:"habit_id,omitempty"`
	Transition TransitionKind `json:"transition,omitempty"`
	Current    int            `json:"current,omitempty"`
	Longest    int            `json:"longest,omitempty"`
	Previous   int            `json:"previous,omitempty"`

	// level_up / rank_up
	FromLevel int    `json:"from_level,omitempty"`
	ToLevel   int    `json:"to_level,omitempty"`
	Milestone bool   `json:"milestone,omitempty"`
	FromRank  string `json:"from_rank,omitempty"`
	ToRank    string `json:"to_rank,omitempty"`
	XP        int64  `json:"xp,omitempty"`

	// pass_used / pass_undone
	Day     string `json:"day,omitempty"`
	WeekKey string `json:"week_key,omitempty"`
}

// Outcome is what every successful mutator returns: the derived values after
// the commit and the events it produced.
type Outcome struct {
	XP          int64    `json:"xp"`
	Level       int      `json:"level"`
	Rank        Rank     `json:"rank"`
	LeveledUp   bool     `json:"leveled_up"`
	Unlocked    []string `json:"unlocked,omitempty"`
	Events      []Event  `json:"events,omitempty"`
	DailyStreak int      `json:"daily_streak"`
	TaskStreak  int      `json:"task_streak"`
	HabitStreak int      `json:"habit_streak,omitempty"`
}

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyAchievement NotificationType = "achievement"
	NotifyLevelUp     NotificationType = "level_up"
	NotifyRankUp      NotificationType = "rank_up"
)

// Notification is a user-facing message kept in the inbox.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NotificationPolicy governs how often notifications are recorded.
type NotificationPolicy struct {
	MaxPerDay  int    `json:"max_per_day"`
	QuietStart string `json:"quiet_start"` // "23:00"
	QuietEnd   string `json:"quiet_end"`   // "07:00"
}

// DefaultNotificationPolicy returns the default policy.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		MaxPerDay:  5,
		QuietStart: "23:00",
		QuietEnd:   "07:00",
	}
}

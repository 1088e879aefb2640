package engagement

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ritim-app/ritim/internal/domain"
)

// ─── Weekly Pass ────────────────────────────────────────────────────────────
// Unused(week) → Used(week, day, snapshot) → Unused(week) via same-day undo,
// or silently Unused(newWeek) once the ISO week rolls over.

// CanUsePass reports whether the weekly pass may be used at now. The weekday
// check comes first so weekends are rejected regardless of prior use.
func CanUsePass(p *domain.UserProgression, c Clock, now time.Time) domain.Eligibility {
	if !c.IsWeekday(now) {
		return domain.Eligibility{Reason: domain.ReasonWeekendNotAllowed}
	}
	if p.WeeklyPass.Used && p.WeeklyPass.WeekKey == c.WeekKey(now) {
		return domain.Eligibility{Reason: domain.ReasonAlreadyUsedThisWeek}
	}
	return domain.Eligibility{OK: true}
}

// CanUndoPass reports whether a pass used today may be undone. LastUsedDay
// decides which day the pass belongs to; a used pass without a matching
// snapshot is corrupt state, not a rejection.
func CanUndoPass(p *domain.UserProgression, c Clock, now time.Time) (domain.Eligibility, error) {
	wp := p.WeeklyPass
	if !wp.Used {
		return domain.Eligibility{Reason: domain.ReasonNotUsed}, nil
	}
	if wp.Snapshot == nil {
		return domain.Eligibility{}, fmt.Errorf("%w: weekly pass used without snapshot", domain.ErrCorruptState)
	}
	if wp.LastUsedDay == "" {
		return domain.Eligibility{}, fmt.Errorf("%w: weekly pass used without a last used day", domain.ErrCorruptState)
	}
	if wp.Snapshot.Day != wp.LastUsedDay {
		return domain.Eligibility{}, fmt.Errorf("%w: pass snapshot day %q != last used day %q",
			domain.ErrCorruptState, wp.Snapshot.Day, wp.LastUsedDay)
	}
	if wp.WeekKey != c.WeekKey(now) {
		return domain.Eligibility{Reason: domain.ReasonDifferentWeek}, nil
	}
	if wp.LastUsedDay != c.DayKey(now) {
		return domain.Eligibility{Reason: domain.ReasonNotToday}, nil
	}
	return domain.Eligibility{OK: true}, nil
}

// streakUpdate is one day-transition applied during a mutation.
type streakUpdate struct {
	Type    domain.StreakType
	HabitID string
	Change  domain.StreakChange
}

// applyPass snapshots every streak record of p, then runs the day-transition
// rule on all of them as if the user had completed everything today. It
// mutates p and must only be called on an eligible clone.
func applyPass(p *domain.UserProgression, c Clock, now time.Time) []streakUpdate {
	today, yesterday := c.DayKey(now), c.PreviousDayKey(now)

	p.WeeklyPass = domain.WeeklyPass{
		WeekKey:     c.WeekKey(now),
		Used:        true,
		LastUsedDay: today,
		Snapshot: &domain.PassSnapshot{
			Day:        today,
			PrevDaily:  p.Streaks.Daily,
			PrevTasks:  p.Streaks.Tasks,
			PrevHabits: maps.Clone(p.Streaks.Habits),
		},
	}
	if p.WeeklyPass.Snapshot.PrevHabits == nil {
		p.WeeklyPass.Snapshot.PrevHabits = map[string]domain.StreakRecord{}
	}

	var updates []streakUpdate
	var change domain.StreakChange

	p.Streaks.Daily, change = ApplyDay(p.Streaks.Daily, today, yesterday)
	updates = append(updates, streakUpdate{Type: domain.StreakDaily, Change: change})

	p.Streaks.Tasks, change = ApplyDay(p.Streaks.Tasks, today, yesterday)
	updates = append(updates, streakUpdate{Type: domain.StreakTasks, Change: change})

	// Sorted so emitted events are deterministic.
	for _, id := range slices.Sorted(maps.Keys(p.Streaks.Habits)) {
		p.Streaks.Habits[id], change = ApplyDay(p.Streaks.Habits[id], today, yesterday)
		updates = append(updates, streakUpdate{Type: domain.StreakHabit, HabitID: id, Change: change})
	}
	return updates
}

// revertPass restores every streak record verbatim from the snapshot and
// returns the pass to Unused for the same week. The habit map is replaced
// wholesale, so habits first seen after the pass was used are dropped too.
func revertPass(p *domain.UserProgression) (day string) {
	snap := p.WeeklyPass.Snapshot
	p.Streaks.Daily = snap.PrevDaily
	p.Streaks.Tasks = snap.PrevTasks
	p.Streaks.Habits = maps.Clone(snap.PrevHabits)
	if p.Streaks.Habits == nil {
		p.Streaks.Habits = map[string]domain.StreakRecord{}
	}
	day = p.WeeklyPass.LastUsedDay
	p.WeeklyPass = domain.WeeklyPass{WeekKey: p.WeeklyPass.WeekKey}
	return day
}

// rolloverPass expires a pass from an earlier ISO week into Unused(current
// week). Reports whether p changed.
func rolloverPass(p *domain.UserProgression, c Clock, now time.Time) bool {
	week := c.WeekKey(now)
	if p.WeeklyPass.WeekKey == week || (p.WeeklyPass.WeekKey == "" && !p.WeeklyPass.Used) {
		return false
	}
	p.WeeklyPass = domain.WeeklyPass{WeekKey: week}
	return true
}

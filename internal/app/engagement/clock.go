// Package engagement implements the ritim progression engine.
// XP, levels and ranks, achievements, streaks and the weekly pass, behind a
// per-user aggregate that serializes mutations and persists every commit.
package engagement

import (
	"fmt"
	"time"
)

// DefaultCutoff is the hour the logical day starts at.
const DefaultCutoff = 2 * time.Hour

// Clock maps instants to logical days. A logical day runs from Cutoff to
// Cutoff local time, so activity at 01:30 still belongs to the previous date.
// All methods are pure functions of their input.
type Clock struct {
	Location *time.Location
	Cutoff   time.Duration
}

// NewClock creates a clock for loc with the default 02:00 cutoff.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Location: loc, Cutoff: DefaultCutoff}
}

// logical returns the offset-adjusted local time for t.
func (c Clock) logical(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Add(-c.Cutoff)
}

// DayKey returns the YYYY-MM-DD key of the logical day containing t.
func (c Clock) DayKey(t time.Time) string {
	return c.logical(t).Format("2006-01-02")
}

// PreviousDayKey returns the day key for exactly 24 hours before t.
func (c Clock) PreviousDayKey(t time.Time) string {
	return c.DayKey(t.Add(-24 * time.Hour))
}

// WeekKey returns the ISO-8601 week ("2025-W07") of the logical day containing t.
func (c Clock) WeekKey(t time.Time) string {
	year, week := c.logical(t).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// IsWeekday reports whether the logical day containing t is Monday through Friday.
func (c Clock) IsWeekday(t time.Time) bool {
	switch c.logical(t).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// HourOf returns the local wall-clock hour of t, without the cutoff applied.
func (c Clock) HourOf(t time.Time) int {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Hour()
}

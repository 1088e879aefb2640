package engagement

import "github.com/ritim-app/ritim/internal/domain"

// ApplyDay runs the day-transition rule on rec for the logical day today,
// where yesterday is the key of the day before it:
//
//	lastDate == today      → unchanged (same-day re-trigger)
//	lastDate == yesterday  → current+1 (consecutive day)
//	otherwise              → current = 1 (gap: reset if a streak was live, else started)
//
// Longest never decreases. A streak can only ever move by +1 per logical day.
func ApplyDay(rec domain.StreakRecord, today, yesterday string) (domain.StreakRecord, domain.StreakChange) {
	change := domain.StreakChange{Previous: rec.Current}

	switch {
	case rec.LastDate == today:
		change.Kind = domain.TransitionUnchanged
		change.Current = rec.Current
		change.Longest = rec.Longest
		return rec, change

	case rec.LastDate != "" && rec.LastDate == yesterday:
		change.Kind = domain.TransitionExtended
		rec.Current++

	default:
		if rec.Current > 0 {
			change.Kind = domain.TransitionReset
		} else {
			change.Kind = domain.TransitionStarted
		}
		rec.Current = 1
	}

	rec.Longest = max(rec.Longest, rec.Current)
	rec.LastDate = today

	change.Current = rec.Current
	change.Longest = rec.Longest
	return rec, change
}

// LiveCurrent returns the streak a user would see right now: the stored
// current value while the streak can still be extended (last completion
// today or yesterday), otherwise 0. Storage is never touched; a broken
// streak only resets on the next completion.
func LiveCurrent(rec domain.StreakRecord, today, yesterday string) int {
	if rec.LastDate == today || rec.LastDate == yesterday {
		return rec.Current
	}
	return 0
}

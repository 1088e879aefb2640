package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Store errors
	ErrPersist      = errors.New("progress could not be saved, please retry")
	ErrCorruptState = errors.New("progression state violates an invariant")
	ErrNotFound     = errors.New("document not found")

	// Input errors
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidPercent = errors.New("percentage must be between 0 and 100")
	ErrInvalidHabitID = errors.New("habit id must not be empty")
	ErrInvalidUserID  = errors.New("user id must not be empty")
)

// ─── Rejection Reasons ──────────────────────────────────────────────────────

// Reason is the closed set of expected, recoverable rejections. A Reason is
// an error so mutators can return it directly and callers can match it with
// errors.Is or recover it with errors.As.
type Reason string

const (
	ReasonInsufficientXP      Reason = "insufficient_xp"
	ReasonAlreadyUsedThisWeek Reason = "already_used_this_week"
	ReasonWeekendNotAllowed   Reason = "weekend_not_allowed"
	ReasonNotUsed             Reason = "not_used"
	ReasonDifferentWeek       Reason = "different_week"
	ReasonNotToday            Reason = "not_today"

	// Decor subsystem reasons. The subsystem lives outside this engine; the
	// values are kept so clients share one enum.
	ReasonNotEnoughXP      Reason = "not_enough_xp"
	ReasonNoLand           Reason = "no_land"
	ReasonWrongOrder       Reason = "wrong_order"
	ReasonAlreadyPurchased Reason = "already_purchased"
)

// Error implements error.
func (r Reason) Error() string { return string(r) }

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonInsufficientXP, ReasonNotEnoughXP:
		return "You don't have enough XP for that."
	case ReasonAlreadyUsedThisWeek:
		return "You already used your weekly pass this week."
	case ReasonWeekendNotAllowed:
		return "The weekly pass can only be used on weekdays."
	case ReasonNotUsed:
		return "There is no weekly pass to undo."
	case ReasonDifferentWeek:
		return "That pass belongs to a previous week and can no longer be undone."
	case ReasonNotToday:
		return "A weekly pass can only be undone on the day it was used."
	case ReasonNoLand:
		return "Buy a plot of land first."
	case ReasonWrongOrder:
		return "Build the previous stage first."
	case ReasonAlreadyPurchased:
		return "You already own this."
	default:
		return string(r)
	}
}

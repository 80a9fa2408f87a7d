// Package continuity computes the temporal splice performed when the worker
// on a contract is replaced: the successor starts on the change date and
// inherits the predecessor's end date, so the customer's paid-through date
// never moves because of a worker change.
package continuity

import (
	"errors"
	"time"
)

// ErrChangeBeforeStart is returned when the requested change date predates
// the interval it is supposed to splice. A replacement cannot begin before
// the contract it replaces.
var ErrChangeBeforeStart = errors.New("change date precedes contract start date")

// Result describes the splice for one replacement.
type Result struct {
	// NewStart is the successor's start date (the change date).
	NewStart time.Time
	// NewEnd is the successor's end date, always equal to the
	// predecessor's end date.
	NewEnd time.Time
	// PredecessorServiceDays is the number of calendar days the
	// predecessor's worker actually served, from its start date to the
	// change date.
	PredecessorServiceDays int
	// Expired is set when the change date falls after the predecessor's
	// nominal end date. The splice is still computed; policy for expired
	// replacements belongs to the caller.
	Expired bool
}

// Splice computes the successor interval and the predecessor's actual
// service duration. All inputs are normalized to date-only granularity.
func Splice(predStart, predEnd, changeDate time.Time) (Result, error) {
	predStart = DateOnly(predStart)
	predEnd = DateOnly(predEnd)
	changeDate = DateOnly(changeDate)

	if changeDate.Before(predStart) {
		return Result{}, ErrChangeBeforeStart
	}

	return Result{
		NewStart:               changeDate,
		NewEnd:                 predEnd,
		PredecessorServiceDays: DaysBetween(predStart, changeDate),
		Expired:                changeDate.After(predEnd),
	}, nil
}

// DaysBetween returns the count of calendar days from a to b. Both are
// normalized first, so the result is exact regardless of time-of-day or DST.
func DaysBetween(a, b time.Time) int {
	a = DateOnly(a)
	b = DateOnly(b)
	return int(b.Sub(a) / (24 * time.Hour))
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

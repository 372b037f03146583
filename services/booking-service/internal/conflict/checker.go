package conflict

import (
	"time"
)

type Code string

const (
	CodeSlotConflict Code = "SLOT_CONFLICT"
	CodePastTime     Code = "PAST_TIME"
	CodeTooFarFuture Code = "TOO_FAR_FUTURE"
)

// BookingHorizonMonths caps how far ahead a booking may start.
const BookingHorizonMonths = 3

// BookingSummary carries enough of a colliding booking for a user-facing
// conflict message.
type BookingSummary struct {
	ID           string
	Start        time.Time
	End          time.Time
	Status       string
	ServiceTitle string
	ClientName   string
}

type Result struct {
	OK          bool
	Code        Code
	Conflicting *BookingSummary
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect: aStart < bEnd && bStart < aEnd. Intervals that
// exactly abut do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Check validates a candidate interval [start, end) against a staff member's
// existing non-cancelled bookings. The buffer-before widens the candidate on
// the left; existing bookings already carry their buffer-after in End.
// Rules apply in order: overlap, past-dated, booking horizon.
func Check(start, end time.Time, bufferBefore time.Duration, existing []BookingSummary, now time.Time) Result {
	bufferStart := start.Add(-bufferBefore)
	for i := range existing {
		b := existing[i]
		if Overlaps(bufferStart, end, b.Start, b.End) {
			return Result{Code: CodeSlotConflict, Conflicting: &b}
		}
	}
	if start.Before(now) {
		return Result{Code: CodePastTime}
	}
	if start.After(now.AddDate(0, BookingHorizonMonths, 0)) {
		return Result{Code: CodeTooFarFuture}
	}
	return Result{OK: true}
}

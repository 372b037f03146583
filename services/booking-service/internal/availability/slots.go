package availability

import (
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/calendar"
	"github.com/olnovikova/slotline/services/booking-service/internal/conflict"
)

// GridStepMinutes fixes the candidate grid. Slots are always grid-aligned
// regardless of service duration, so services of different length yield
// different slot counts from the same grid.
const GridStepMinutes = 30

type Interval struct {
	Start time.Time
	End   time.Time
}

// Slots enumerates bookable start times for one local day. dayStart is local
// midnight, the window is minutes from midnight, spanMinutes is the service
// duration plus both buffers (buffer-before is folded into the span here, so
// no separate left-widening happens — this intentionally differs from the
// live conflict check). Output is ascending "HH:MM".
func Slots(dayStart time.Time, window calendar.DayWindow, spanMinutes int, busy []Interval) []string {
	if !window.Open || spanMinutes <= 0 {
		return []string{}
	}

	out := []string{}
	for m := window.StartMinute; m+spanMinutes <= window.EndMinute; m += GridStepMinutes {
		slotStart := dayStart.Add(time.Duration(m) * time.Minute)
		slotEnd := slotStart.Add(time.Duration(spanMinutes) * time.Minute)
		if overlapsAny(slotStart, slotEnd, busy) {
			continue
		}
		out = append(out, calendar.FormatClock(m))
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if conflict.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

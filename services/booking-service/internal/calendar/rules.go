package calendar

import (
	"fmt"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

// Defaults used when an open_custom exception omits a bound.
const (
	defaultOpenStartMinute = 9 * 60  // 09:00
	defaultOpenEndMinute   = 18 * 60 // 18:00
)

// DayWindow is the resolved working window for one business day, minutes
// from local midnight.
type DayWindow struct {
	Open        bool
	StartMinute int
	EndMinute   int
}

// Resolve computes the applicable window for a date. A matching exception
// fully overrides the weekly default: closed yields no window, open_custom
// substitutes its own bounds, and any unknown type fails closed. With no
// exception, the weekly row decides; a missing or non-working row is closed.
func Resolve(exc *model.AvailabilityException, weekly *model.WorkingHours) DayWindow {
	if exc != nil {
		switch exc.Type {
		case model.ExceptionOpenCustom:
			start := exc.StartMinute
			if start < 0 {
				start = defaultOpenStartMinute
			}
			end := exc.EndMinute
			if end < 0 {
				end = defaultOpenEndMinute
			}
			if end <= start {
				return DayWindow{}
			}
			return DayWindow{Open: true, StartMinute: start, EndMinute: end}
		default:
			// closed, or a type this version does not know: no slots.
			return DayWindow{}
		}
	}

	if weekly == nil || !weekly.IsWorking {
		return DayWindow{}
	}
	if weekly.EndMinute <= weekly.StartMinute {
		return DayWindow{}
	}
	return DayWindow{Open: true, StartMinute: weekly.StartMinute, EndMinute: weekly.EndMinute}
}

// DayBounds returns the [midnight, midnight+24h) range of a local day,
// used to match date exceptions against timestamp columns.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

package model

import "time"

type Business struct {
	ID       string
	Name     string
	Timezone string
}

type Service struct {
	ID               string
	BusinessID       string
	Title            string
	DurationMins     int
	BufferBeforeMins int
	BufferAfterMins  int
	Price            string
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
}

type Client struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	Email      string
	VKUserID   string
}

// WorkingHours is the weekly default window for one weekday, minutes from
// local midnight.
type WorkingHours struct {
	BusinessID  string
	Weekday     time.Weekday
	IsWorking   bool
	StartMinute int
	EndMinute   int
}

type ExceptionType string

const (
	ExceptionClosed     ExceptionType = "closed"
	ExceptionOpenCustom ExceptionType = "open_custom"
)

// AvailabilityException overrides the weekly schedule for a single date.
// StartMinute/EndMinute are -1 when the bound was not provided.
type AvailabilityException struct {
	ID          int64
	BusinessID  string
	Date        time.Time
	Type        ExceptionType
	StartMinute int
	EndMinute   int
}

// WeekdayName maps numerically-computed weekdays to fixed English keys,
// independent of runtime locale.
func WeekdayName(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

package model

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return BookingStatus(s), true
	}
	return "", false
}

// allowedTransitions is the closed transition table. Cancelled, completed and
// no-show are terminal: a booking is never resurrected.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusNoShow:    {},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type BookingSource string

const (
	SourceWeb   BookingSource = "web"
	SourceAdmin BookingSource = "admin"
	SourceVK    BookingSource = "vk"
)

// Booking is one appointment on a staff member's calendar. EndTime already
// includes the service's buffer-after; buffer-before is an exclusion zone
// enforced at conflict-check time and does not extend the stored interval.
type Booking struct {
	ID         string
	BusinessID string
	StaffID    string
	ServiceID  string
	ClientID   string // empty for walk-in/guest bookings
	StartTime  time.Time
	EndTime    time.Time
	Status     BookingStatus
	Source     BookingSource
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

package booking

import (
	"errors"
	"fmt"

	"github.com/olnovikova/slotline/services/booking-service/internal/conflict"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

var (
	// ErrNotFound is returned by Store implementations when a record is absent.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden marks a tenant-isolation violation: the record exists but
	// belongs to a different business.
	ErrForbidden = errors.New("record belongs to another business")
	// ErrSlotTaken is returned by Store.CreateBooking when the database-side
	// exclusion guard rejects an overlapping interval.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrInvalidDate marks an unparseable YYYY-MM-DD date argument.
	ErrInvalidDate = errors.New("invalid date")
	// ErrNotReschedulable rejects moving a booking in a terminal status.
	ErrNotReschedulable = errors.New("booking can no longer be moved")
)

// ConflictError is the user-facing rejection of a booking attempt. Code is
// machine-readable so front-ends can branch without string matching.
type ConflictError struct {
	Code        conflict.Code
	Message     string
	Conflicting *conflict.BookingSummary
}

func (e *ConflictError) Error() string {
	return e.Message
}

// TransitionError rejects a status change the transition table disallows.
type TransitionError struct {
	From model.BookingStatus
	To   model.BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("status transition %s -> %s is not allowed", e.From, e.To)
}

package dispatch

import "errors"

var (
	// ErrNotFound covers absent notifications and absent bookings alike.
	ErrNotFound = errors.New("not found")

	// ErrNoClient rejects notification creation for clientless bookings.
	ErrNoClient = errors.New("booking has no client")

	// ErrNoContact rejects channel auto-selection when the client has no
	// contact details at all.
	ErrNoContact = errors.New("client has no contact details")

	// ErrAlreadySent rejects a resend of a delivered notification.
	ErrAlreadySent = errors.New("notification already sent")
)

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/olnovikova/slotline/services/notification-service/internal/model"
	"github.com/olnovikova/slotline/services/notification-service/internal/schedule"
)

// Contact is the client's reachable addresses, one per channel.
type Contact struct {
	Phone    string
	Email    string
	VKUserID string
}

// BookingContext is everything dispatch needs to know about the booking a
// notification belongs to: who to reach, what to render, and whether the
// booking still stands.
type BookingContext struct {
	BookingID        string
	BusinessID       string
	ClientID         string
	BookingStart     time.Time
	BookingStatus    string
	BusinessName     string
	BusinessTimezone string
	ServiceTitle     string
	StaffName        string
	ClientName       string
	Contact          Contact
}

// Store is the persistence surface for notifications. Status changes use
// conditional writes guarded on the current status, so a lost race reports
// false instead of clobbering a concurrent update.
type Store interface {
	Insert(ctx context.Context, n model.Notification) error
	Get(ctx context.Context, id string) (model.Notification, error)
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Notification, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)

	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	ResetPending(ctx context.Context, id string, scheduledFor time.Time) error

	GetBookingContext(ctx context.Context, bookingID string) (BookingContext, error)
}

// Sender delivers a rendered message over one of the supported transports.
type Sender interface {
	SendSMS(ctx context.Context, to string, body string) error
	SendEmail(ctx context.Context, to string, subject string, body string) error
	SendSocial(ctx context.Context, userID string, body string) error
}

// EventSink publishes dispatch outcome events.
type EventSink interface {
	Emit(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

// Outcome is the explicit result of a dispatch attempt. A failed attempt is
// a recorded outcome, not an error: errors are reserved for infrastructure
// problems (store unreachable and the like).
type Outcome struct {
	Sent   bool
	Reason string
}

const (
	EventNotificationSent   = "notification.sent.v1"
	EventNotificationFailed = "notification.failed.v1"
)

type Dispatcher struct {
	store  Store
	sender Sender
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

func NewDispatcher(store Store, sender Sender, events EventSink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		sender: sender,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams describes a notification to schedule. An empty Channel
// auto-selects from the client's contacts (phone, then email, then VK).
// An empty Message renders the template default.
type CreateParams struct {
	BookingID string
	Channel   model.Channel
	Template  model.Template
	Message   string
}

func (d *Dispatcher) Create(ctx context.Context, p CreateParams) (model.Notification, error) {
	bc, err := d.store.GetBookingContext(ctx, p.BookingID)
	if err != nil {
		return model.Notification{}, fmt.Errorf("booking: %w", err)
	}
	if bc.ClientID == "" {
		return model.Notification{}, ErrNoClient
	}

	channel := p.Channel
	if channel == "" {
		channel, err = autoChannel(bc.Contact)
		if err != nil {
			return model.Notification{}, err
		}
	}

	loc := locationOf(bc.BusinessTimezone)
	now := d.now()
	due := schedule.DueAt(p.Template, bc.BookingStart, loc, now)

	message := p.Message
	if message == "" {
		message = schedule.Render(p.Template, schedule.MessageContext{
			BusinessName: bc.BusinessName,
			ServiceTitle: bc.ServiceTitle,
			StaffName:    bc.StaffName,
			ClientName:   bc.ClientName,
			Start:        bc.BookingStart,
			Location:     loc,
		})
	}

	n := model.Notification{
		ID:           uuid.NewString(),
		BusinessID:   bc.BusinessID,
		BookingID:    bc.BookingID,
		ClientID:     bc.ClientID,
		Channel:      channel,
		Template:     p.Template,
		Message:      message,
		Status:       model.StatusPending,
		ScheduledFor: due,
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}

	// Delivery is the worker's job, even for already-due rows: a slow
	// SMTP or gateway peer must not hang the caller's request. DueAt
	// clamps past due times to now, so the next tick picks them up.
	return n, nil
}

// Send attempts delivery of a pending notification. Calling it on a
// notification in any other status is a no-op reporting the stored outcome.
func (d *Dispatcher) Send(ctx context.Context, id string) (Outcome, error) {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("notification: %w", err)
	}
	if n.Status != model.StatusPending {
		return Outcome{Sent: n.Status == model.StatusSent, Reason: n.FailureReason}, nil
	}

	bc, err := d.store.GetBookingContext(ctx, n.BookingID)
	if err != nil {
		return Outcome{}, fmt.Errorf("booking: %w", err)
	}

	// A reminder for a booking that no longer stands is dead on arrival.
	if n.Template == model.TemplateReminder && bc.BookingStatus == "cancelled" {
		return d.fail(ctx, n, "booking cancelled")
	}

	to, reason := contactFor(n.Channel, bc.Contact)
	if to == "" {
		return d.fail(ctx, n, reason)
	}

	if err := d.deliver(ctx, n, bc, to); err != nil {
		d.logger.Error("delivery failed", "notification_id", n.ID, "channel", n.Channel, "err", err)
		return d.fail(ctx, n, err.Error())
	}

	sentAt := d.now()
	ok, err := d.store.MarkSent(ctx, n.ID, sentAt)
	if err != nil {
		return Outcome{}, fmt.Errorf("mark sent: %w", err)
	}
	if !ok {
		d.logger.Warn("notification status changed during dispatch", "notification_id", n.ID)
	}
	d.emit(ctx, EventNotificationSent, n, map[string]any{"sent_at": sentAt.Format(time.RFC3339)})
	d.logger.Info("notification sent", "notification_id", n.ID, "channel", n.Channel, "template", n.Template)
	return Outcome{Sent: true}, nil
}

// Resend re-queues a failed notification and makes one immediate attempt.
// Delivered notifications are never resent.
func (d *Dispatcher) Resend(ctx context.Context, id string) (Outcome, error) {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("notification: %w", err)
	}
	if n.Status == model.StatusSent {
		return Outcome{}, ErrAlreadySent
	}
	if n.Status == model.StatusFailed {
		if err := d.store.ResetPending(ctx, n.ID, d.now()); err != nil {
			return Outcome{}, fmt.Errorf("reset pending: %w", err)
		}
	}
	return d.Send(ctx, id)
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification, bc BookingContext, to string) error {
	switch n.Channel {
	case model.ChannelSMS:
		return d.sender.SendSMS(ctx, to, n.Message)
	case model.ChannelEmail:
		subject := bc.BusinessName
		if subject == "" {
			subject = "Booking notification"
		}
		return d.sender.SendEmail(ctx, to, subject, n.Message)
	case model.ChannelVK:
		return d.sender.SendSocial(ctx, to, n.Message)
	default:
		return fmt.Errorf("unsupported channel %q", n.Channel)
	}
}

func (d *Dispatcher) fail(ctx context.Context, n model.Notification, reason string) (Outcome, error) {
	ok, err := d.store.MarkFailed(ctx, n.ID, reason)
	if err != nil {
		return Outcome{}, fmt.Errorf("mark failed: %w", err)
	}
	if !ok {
		d.logger.Warn("notification status changed during dispatch", "notification_id", n.ID)
	}
	d.emit(ctx, EventNotificationFailed, n, map[string]any{
		"error_reason": reason,
		"failed_at":    d.now().Format(time.RFC3339),
	})
	d.logger.Warn("notification failed", "notification_id", n.ID, "channel", n.Channel, "reason", reason)
	return Outcome{Sent: false, Reason: reason}, nil
}

func (d *Dispatcher) emit(ctx context.Context, eventType string, n model.Notification, extra map[string]any) {
	if d.events == nil {
		return
	}
	fields := map[string]any{
		"notification_id": n.ID,
		"booking_id":      n.BookingID,
		"business_id":     n.BusinessID,
		"channel":         string(n.Channel),
		"template":        string(n.Template),
	}
	for k, v := range extra {
		fields[k] = v
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		d.logger.Error("event payload marshal failed", "err", err)
		return
	}
	if err := d.events.Emit(ctx, eventType, n.ID, payload); err != nil {
		d.logger.Warn("event emit failed; dispatch outcome stands", "event_type", eventType, "err", err)
	}
}

func autoChannel(c Contact) (model.Channel, error) {
	switch {
	case c.Phone != "":
		return model.ChannelSMS, nil
	case c.Email != "":
		return model.ChannelEmail, nil
	case c.VKUserID != "":
		return model.ChannelVK, nil
	default:
		return "", ErrNoContact
	}
}

func contactFor(ch model.Channel, c Contact) (string, string) {
	switch ch {
	case model.ChannelSMS:
		if c.Phone == "" {
			return "", "client has no phone number"
		}
		return c.Phone, ""
	case model.ChannelEmail:
		if c.Email == "" {
			return "", "client has no email address"
		}
		return c.Email, ""
	case model.ChannelVK:
		if c.VKUserID == "" {
			return "", "client has no vk profile"
		}
		return c.VKUserID, ""
	default:
		return "", fmt.Sprintf("unsupported channel %q", ch)
	}
}

func locationOf(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return time.UTC
	}
	return loc
}

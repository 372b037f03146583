package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/olnovikova/slotline/services/booking-service/internal/availability"
	"github.com/olnovikova/slotline/services/booking-service/internal/calendar"
	"github.com/olnovikova/slotline/services/booking-service/internal/conflict"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

// Event types published to the outbox. Topic name equals event type.
const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)

// Store is the persistence surface the lifecycle needs. Implementations
// return ErrNotFound for absent records and ErrSlotTaken when the
// database-side range-exclusion guard rejects an insert.
type Store interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	GetClient(ctx context.Context, id string) (model.Client, error)
	FindOrCreateClient(ctx context.Context, c model.Client) (model.Client, error)

	// ListConflictCandidates returns summaries of the staff member's
	// non-cancelled bookings whose stored interval intersects [from, to).
	ListConflictCandidates(ctx context.Context, staffID string, from, to time.Time) ([]conflict.BookingSummary, error)
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Booking, error)

	CreateBooking(ctx context.Context, b model.Booking) error
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (model.Booking, error)
	// RescheduleBooking moves the stored interval, returning ErrSlotTaken
	// when the exclusion guard rejects the new one.
	RescheduleBooking(ctx context.Context, id string, start, end time.Time) (model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error

	// FindException looks up the availability exception for a calendar
	// date ("2006-01-02"). Matching is by date, not instant: exception
	// rows are day-granular and must hit regardless of the business's
	// UTC offset.
	FindException(ctx context.Context, businessID string, date string) (*model.AvailabilityException, error)
	GetWorkingHours(ctx context.Context, businessID string, weekday time.Weekday) (*model.WorkingHours, error)
}

// EventSink publishes lifecycle events. Emission is best-effort from the
// caller's point of view: the lifecycle logs and ignores sink errors.
type EventSink interface {
	Emit(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

type Service struct {
	store  Store
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, events EventSink, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListSlots resolves the working window for the date and enumerates
// grid-aligned bookable start times as local "HH:MM" strings.
func (s *Service) ListSlots(ctx context.Context, businessID, serviceID, staffID, date string) ([]string, error) {
	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("business: %w", err)
	}
	svc, _, err := s.resolveTenant(ctx, businessID, serviceID, staffID)
	if err != nil {
		return nil, err
	}

	loc := businessLocation(biz)
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	dayStart, dayEnd := calendar.DayBounds(day, loc)

	exc, err := s.store.FindException(ctx, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("availability exception: %w", err)
	}
	weekly, err := s.store.GetWorkingHours(ctx, businessID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	window := calendar.Resolve(exc, weekly)
	if !window.Open {
		return []string{}, nil
	}

	booked, err := s.store.ListConflictCandidates(ctx, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("booked intervals: %w", err)
	}
	busy := make([]availability.Interval, 0, len(booked))
	for _, b := range booked {
		busy = append(busy, availability.Interval{Start: b.Start, End: b.End})
	}

	span := svc.DurationMins + svc.BufferBeforeMins + svc.BufferAfterMins
	return availability.Slots(dayStart, window, span, busy), nil
}

// CreateParams describes a booking request. ClientID wins over the inline
// client fields; with neither id nor phone the booking is created clientless.
type CreateParams struct {
	BusinessID  string
	StaffID     string
	ServiceID   string
	Start       time.Time
	ClientID    string
	ClientName  string
	ClientPhone string
	ClientEmail string
	Source      model.BookingSource
}

func (s *Service) Create(ctx context.Context, p CreateParams) (model.Booking, error) {
	svc, staff, err := s.resolveTenant(ctx, p.BusinessID, p.ServiceID, p.StaffID)
	if err != nil {
		return model.Booking{}, err
	}
	biz, err := s.store.GetBusiness(ctx, p.BusinessID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("business: %w", err)
	}

	start := p.Start.UTC()
	end := start.Add(time.Duration(svc.DurationMins+svc.BufferAfterMins) * time.Minute)
	bufferBefore := time.Duration(svc.BufferBeforeMins) * time.Minute

	existing, err := s.store.ListConflictCandidates(ctx, p.StaffID, start.Add(-bufferBefore), end)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booked intervals: %w", err)
	}
	if res := conflict.Check(start, end, bufferBefore, existing, s.now()); !res.OK {
		return model.Booking{}, conflictError(res)
	}

	client, err := s.resolveClient(ctx, p)
	if err != nil {
		return model.Booking{}, err
	}

	source := p.Source
	if source == "" {
		source = model.SourceWeb
	}
	b := model.Booking{
		ID:         uuid.NewString(),
		BusinessID: p.BusinessID,
		StaffID:    p.StaffID,
		ServiceID:  p.ServiceID,
		ClientID:   client.ID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.StatusPending,
		Source:     source,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		// The read-then-write check above is necessary but not sufficient
		// under concurrency; the exclusion guard has the final word.
		if errors.Is(err, ErrSlotTaken) {
			return model.Booking{}, conflictError(conflict.Result{Code: conflict.CodeSlotConflict})
		}
		return model.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	s.emit(ctx, EventBookingCreated, b, biz, svc, staff, client)
	return b, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, next model.BookingStatus) (model.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking: %w", err)
	}
	if current.Status == next {
		return current, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return model.Booking{}, &TransitionError{From: current.Status, To: next}
	}

	updated, err := s.store.UpdateBookingStatus(ctx, id, next)
	if err != nil {
		return model.Booking{}, fmt.Errorf("update status: %w", err)
	}

	var eventType string
	switch next {
	case model.StatusConfirmed:
		eventType = EventBookingConfirmed
	case model.StatusCancelled:
		eventType = EventBookingCancelled
	}
	if eventType != "" {
		s.emitForBooking(ctx, eventType, updated)
	}
	return updated, nil
}

// Reschedule moves a booking to a new start time. The interval is
// recomputed from the service's current duration and buffers, and the
// conflict check runs against the staff member's other bookings; the
// booking's own interval never blocks its move.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (model.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking: %w", err)
	}
	if current.Status != model.StatusPending && current.Status != model.StatusConfirmed {
		return model.Booking{}, fmt.Errorf("%w: status %s", ErrNotReschedulable, current.Status)
	}
	svc, err := s.store.GetService(ctx, current.ServiceID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("service: %w", err)
	}

	start := newStart.UTC()
	end := start.Add(time.Duration(svc.DurationMins+svc.BufferAfterMins) * time.Minute)
	bufferBefore := time.Duration(svc.BufferBeforeMins) * time.Minute

	candidates, err := s.store.ListConflictCandidates(ctx, current.StaffID, start.Add(-bufferBefore), end)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booked intervals: %w", err)
	}
	others := candidates[:0]
	for _, c := range candidates {
		if c.ID != current.ID {
			others = append(others, c)
		}
	}
	if res := conflict.Check(start, end, bufferBefore, others, s.now()); !res.OK {
		return model.Booking{}, conflictError(res)
	}

	moved, err := s.store.RescheduleBooking(ctx, id, start, end)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return model.Booking{}, conflictError(conflict.Result{Code: conflict.CodeSlotConflict})
		}
		return model.Booking{}, fmt.Errorf("reschedule booking: %w", err)
	}
	return moved, nil
}

// Remove hard-deletes a booking. Cancellation (logical deletion) is the
// normal path; removal exists for operator cleanup.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.DeleteBooking(ctx, id)
}

func (s *Service) List(ctx context.Context, businessID string, limit int) ([]model.Booking, error) {
	return s.store.ListByBusiness(ctx, businessID, limit)
}

func (s *Service) resolveTenant(ctx context.Context, businessID, serviceID, staffID string) (model.Service, model.Staff, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return model.Service{}, model.Staff{}, fmt.Errorf("service: %w", err)
	}
	if svc.BusinessID != businessID {
		return model.Service{}, model.Staff{}, fmt.Errorf("service: %w", ErrForbidden)
	}
	staff, err := s.store.GetStaff(ctx, staffID)
	if err != nil {
		return model.Service{}, model.Staff{}, fmt.Errorf("staff: %w", err)
	}
	if staff.BusinessID != businessID {
		return model.Service{}, model.Staff{}, fmt.Errorf("staff: %w", ErrForbidden)
	}
	return svc, staff, nil
}

func (s *Service) resolveClient(ctx context.Context, p CreateParams) (model.Client, error) {
	if p.ClientID != "" {
		client, err := s.store.GetClient(ctx, p.ClientID)
		if err != nil {
			return model.Client{}, fmt.Errorf("client: %w", err)
		}
		if client.BusinessID != p.BusinessID {
			return model.Client{}, fmt.Errorf("client: %w", ErrForbidden)
		}
		return client, nil
	}
	if p.ClientPhone == "" {
		return model.Client{}, nil
	}
	// Phone is the natural dedup key within a business.
	client, err := s.store.FindOrCreateClient(ctx, model.Client{
		BusinessID: p.BusinessID,
		Name:       p.ClientName,
		Phone:      p.ClientPhone,
		Email:      p.ClientEmail,
	})
	if err != nil {
		return model.Client{}, fmt.Errorf("client: %w", err)
	}
	return client, nil
}

func conflictError(res conflict.Result) *ConflictError {
	e := &ConflictError{Code: res.Code, Conflicting: res.Conflicting}
	switch res.Code {
	case conflict.CodePastTime:
		e.Message = "booking time is in the past"
	case conflict.CodeTooFarFuture:
		e.Message = fmt.Sprintf("booking time is more than %d months ahead", conflict.BookingHorizonMonths)
	default:
		e.Message = "the requested time overlaps an existing booking"
		if res.Conflicting != nil {
			e.Message = fmt.Sprintf("the requested time overlaps a booking for %s (%s) from %s to %s",
				res.Conflicting.ClientName,
				res.Conflicting.ServiceTitle,
				res.Conflicting.Start.Format("15:04"),
				res.Conflicting.End.Format("15:04"),
			)
		}
	}
	return e
}

func businessLocation(biz model.Business) *time.Location {
	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil || biz.Timezone == "" {
		return time.UTC
	}
	return loc
}

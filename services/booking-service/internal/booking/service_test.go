package booking

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/conflict"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

type fakeStore struct {
	businesses map[string]model.Business
	services   map[string]model.Service
	staff      map[string]model.Staff
	clients    map[string]model.Client
	bookings   map[string]model.Booking
	exceptions []model.AvailabilityException
	weekly     map[time.Weekday]model.WorkingHours

	created        []model.Booking
	createErr      error
	clientsCreated int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses: map[string]model.Business{
			"biz1": {ID: "biz1", Name: "Cut&Go", Timezone: "UTC"},
		},
		services: map[string]model.Service{
			"svc1": {ID: "svc1", BusinessID: "biz1", Title: "Haircut", DurationMins: 60},
			"svc2": {ID: "svc2", BusinessID: "other", Title: "Massage", DurationMins: 60},
		},
		staff: map[string]model.Staff{
			"st1": {ID: "st1", BusinessID: "biz1", Name: "Dana", IsActive: true},
			"st2": {ID: "st2", BusinessID: "other", Name: "Remy", IsActive: true},
		},
		clients:  map[string]model.Client{},
		bookings: map[string]model.Booking{},
		weekly:   map[time.Weekday]model.WorkingHours{},
	}
}

func (f *fakeStore) GetBusiness(_ context.Context, id string) (model.Business, error) {
	b, ok := f.businesses[id]
	if !ok {
		return model.Business{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) GetService(_ context.Context, id string) (model.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetStaff(_ context.Context, id string) (model.Staff, error) {
	s, ok := f.staff[id]
	if !ok {
		return model.Staff{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) GetClient(_ context.Context, id string) (model.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return model.Client{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) FindOrCreateClient(_ context.Context, c model.Client) (model.Client, error) {
	for _, existing := range f.clients {
		if existing.BusinessID == c.BusinessID && existing.Phone == c.Phone {
			return existing, nil
		}
	}
	c.ID = "client-new"
	f.clients[c.ID] = c
	f.clientsCreated++
	return c, nil
}

func (f *fakeStore) ListConflictCandidates(_ context.Context, staffID string, from, to time.Time) ([]conflict.BookingSummary, error) {
	var out []conflict.BookingSummary
	for _, b := range f.bookings {
		if b.StaffID != staffID || b.Status == model.StatusCancelled {
			continue
		}
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, conflict.BookingSummary{ID: b.ID, Start: b.StartTime, End: b.EndTime, Status: string(b.Status)})
		}
	}
	return out, nil
}

func (f *fakeStore) ListByBusiness(_ context.Context, businessID string, _ int) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		if b.BusinessID == businessID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b model.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.bookings[b.ID] = b
	f.created = append(f.created, b)
	return nil
}

func (f *fakeStore) UpdateBookingStatus(_ context.Context, id string, status model.BookingStatus) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	b.Status = status
	f.bookings[id] = b
	return b, nil
}

func (f *fakeStore) RescheduleBooking(_ context.Context, id string, start, end time.Time) (model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	b.StartTime = start
	b.EndTime = end
	f.bookings[id] = b
	return b, nil
}

func (f *fakeStore) DeleteBooking(_ context.Context, id string) error {
	if _, ok := f.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeStore) FindException(_ context.Context, businessID string, date string) (*model.AvailabilityException, error) {
	for i := range f.exceptions {
		exc := f.exceptions[i]
		if exc.BusinessID == businessID && exc.Date.UTC().Format("2006-01-02") == date {
			return &exc, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetWorkingHours(_ context.Context, _ string, weekday time.Weekday) (*model.WorkingHours, error) {
	wh, ok := f.weekly[weekday]
	if !ok {
		return nil, nil
	}
	return &wh, nil
}

type fakeSink struct {
	emitted []string
	err     error
}

func (f *fakeSink) Emit(_ context.Context, eventType, _ string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.emitted = append(f.emitted, eventType)
	return nil
}

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, sink *fakeSink) *Service {
	svc := NewService(store, sink, slog.Default())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCreate_HappyPath(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	svc := newTestService(store, sink)

	start := testNow.Add(24 * time.Hour)
	b, err := svc.Create(context.Background(), CreateParams{
		BusinessID:  "biz1",
		StaffID:     "st1",
		ServiceID:   "svc1",
		Start:       start,
		ClientName:  "Ada",
		ClientPhone: "+15550100",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if !b.EndTime.Equal(start.Add(60 * time.Minute)) {
		t.Fatalf("expected end = start + 60m, got %s", b.EndTime)
	}
	if b.Source != model.SourceWeb {
		t.Fatalf("expected default source web, got %s", b.Source)
	}
	if b.ClientID == "" {
		t.Fatal("expected a client to be attached")
	}
	if len(sink.emitted) != 1 || sink.emitted[0] != EventBookingCreated {
		t.Fatalf("expected one created event, got %v", sink.emitted)
	}
}

func TestCreate_EndIncludesBufferAfter(t *testing.T) {
	store := newFakeStore()
	store.services["svc1"] = model.Service{ID: "svc1", BusinessID: "biz1", Title: "Haircut", DurationMins: 60, BufferBeforeMins: 10, BufferAfterMins: 15}
	svc := newTestService(store, &fakeSink{})

	start := testNow.Add(24 * time.Hour)
	b, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Buffer-after extends the stored interval; buffer-before does not.
	if got := b.EndTime.Sub(b.StartTime); got != 75*time.Minute {
		t.Fatalf("expected 75m interval, got %s", got)
	}
}

func TestCreate_Conflict(t *testing.T) {
	store := newFakeStore()
	start := testNow.Add(24 * time.Hour)
	store.bookings["b0"] = model.Booking{
		ID: "b0", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		StartTime: start.Add(30 * time.Minute), EndTime: start.Add(90 * time.Minute),
		Status: model.StatusConfirmed,
	}
	sink := &fakeSink{}
	svc := newTestService(store, sink)

	_, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: start,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Code != conflict.CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT, got %v", err)
	}
	if conflictErr.Conflicting == nil || conflictErr.Conflicting.ID != "b0" {
		t.Fatalf("expected conflicting booking b0, got %+v", conflictErr.Conflicting)
	}
	if len(sink.emitted) != 0 {
		t.Fatalf("no event must be emitted on rejection, got %v", sink.emitted)
	}
}

func TestCreate_CancelledBookingDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	start := testNow.Add(24 * time.Hour)
	store.bookings["b0"] = model.Booking{
		ID: "b0", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		StartTime: start, EndTime: start.Add(time.Hour),
		Status: model.StatusCancelled,
	}
	svc := newTestService(store, &fakeSink{})

	if _, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: start,
	}); err != nil {
		t.Fatalf("cancelled booking must not block: %v", err)
	}
}

func TestCreate_PastTime(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSink{})
	_, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: testNow.Add(-time.Hour),
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Code != conflict.CodePastTime {
		t.Fatalf("expected PAST_TIME, got %v", err)
	}
}

func TestCreate_TooFarFuture(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSink{})
	_, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		Start: testNow.AddDate(0, 3, 1),
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Code != conflict.CodeTooFarFuture {
		t.Fatalf("expected TOO_FAR_FUTURE, got %v", err)
	}
}

func TestCreate_TenantMismatch(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSink{})
	_, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc2", Start: testNow.Add(time.Hour),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign service, got %v", err)
	}
	_, err = svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st2", ServiceID: "svc1", Start: testNow.Add(time.Hour),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign staff, got %v", err)
	}
}

func TestCreate_ExclusionGuardMapsToConflict(t *testing.T) {
	store := newFakeStore()
	store.createErr = ErrSlotTaken
	svc := newTestService(store, &fakeSink{})

	_, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: testNow.Add(time.Hour),
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Code != conflict.CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT from exclusion guard, got %v", err)
	}
}

func TestCreate_ClientReuseByPhone(t *testing.T) {
	store := newFakeStore()
	store.clients["c1"] = model.Client{ID: "c1", BusinessID: "biz1", Name: "Ada", Phone: "+15550100"}
	svc := newTestService(store, &fakeSink{})

	b, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		Start: testNow.Add(time.Hour), ClientPhone: "+15550100",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ClientID != "c1" {
		t.Fatalf("expected existing client c1, got %s", b.ClientID)
	}
	if store.clientsCreated != 0 {
		t.Fatal("no new client must be created for a known phone")
	}
}

func TestCreate_ClientlessBooking(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSink{})
	b, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: testNow.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ClientID != "" {
		t.Fatalf("expected clientless booking, got client %s", b.ClientID)
	}
}

func TestCreate_EventFailureDoesNotFailBooking(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{err: errors.New("kafka down")}
	svc := newTestService(store, sink)

	if _, err := svc.Create(context.Background(), CreateParams{
		BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Start: testNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("booking must stand despite emit failure: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 booking created, got %d", len(store.created))
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	store := newFakeStore()
	store.bookings["b1"] = model.Booking{ID: "b1", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1", Status: model.StatusPending}
	sink := &fakeSink{}
	svc := newTestService(store, sink)

	b, err := svc.UpdateStatus(context.Background(), "b1", model.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", b.Status)
	}
	if len(sink.emitted) != 1 || sink.emitted[0] != EventBookingConfirmed {
		t.Fatalf("expected confirmed event, got %v", sink.emitted)
	}

	if _, err := svc.UpdateStatus(context.Background(), "b1", model.StatusPending); err == nil {
		t.Fatal("confirmed -> pending must be rejected")
	} else {
		var transitionErr *TransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
	}
}

func TestUpdateStatus_SameStatusIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.bookings["b1"] = model.Booking{ID: "b1", Status: model.StatusConfirmed}
	sink := &fakeSink{}
	svc := newTestService(store, sink)

	if _, err := svc.UpdateStatus(context.Background(), "b1", model.StatusConfirmed); err != nil {
		t.Fatalf("same-status update must be a no-op: %v", err)
	}
	if len(sink.emitted) != 0 {
		t.Fatalf("no event on no-op, got %v", sink.emitted)
	}
}

func TestUpdateStatus_CompletedEmitsNothing(t *testing.T) {
	store := newFakeStore()
	store.bookings["b1"] = model.Booking{ID: "b1", BusinessID: "biz1", Status: model.StatusConfirmed}
	sink := &fakeSink{}
	svc := newTestService(store, sink)

	if _, err := svc.UpdateStatus(context.Background(), "b1", model.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(sink.emitted) != 0 {
		t.Fatalf("completed must not emit, got %v", sink.emitted)
	}
}

func TestReschedule_IntoOccupiedWindowConflicts(t *testing.T) {
	store := newFakeStore()
	start := testNow.Add(24 * time.Hour)
	store.bookings["b1"] = model.Booking{
		ID: "b1", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		StartTime: start, EndTime: start.Add(time.Hour),
		Status: model.StatusConfirmed,
	}
	store.bookings["b2"] = model.Booking{
		ID: "b2", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		StartTime: start.Add(2 * time.Hour), EndTime: start.Add(3 * time.Hour),
		Status: model.StatusConfirmed,
	}
	svc := newTestService(store, &fakeSink{})

	_, err := svc.Reschedule(context.Background(), "b1", start.Add(2*time.Hour+30*time.Minute))
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Code != conflict.CodeSlotConflict {
		t.Fatalf("expected SLOT_CONFLICT, got %v", err)
	}
	if got := store.bookings["b1"].StartTime; !got.Equal(start) {
		t.Fatalf("rejected move must not change the booking, got start %s", got)
	}
}

func TestReschedule_OwnIntervalDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	start := testNow.Add(24 * time.Hour)
	store.bookings["b1"] = model.Booking{
		ID: "b1", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		StartTime: start, EndTime: start.Add(time.Hour),
		Status: model.StatusPending,
	}
	svc := newTestService(store, &fakeSink{})

	// New interval overlaps the old one; only the booking itself occupies it.
	moved, err := svc.Reschedule(context.Background(), "b1", start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.StartTime.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("unexpected new start %s", moved.StartTime)
	}
	if got := moved.EndTime.Sub(moved.StartTime); got != time.Hour {
		t.Fatalf("interval must be recomputed from the service, got %s", got)
	}
}

func TestReschedule_TerminalStatusRejected(t *testing.T) {
	store := newFakeStore()
	store.bookings["b1"] = model.Booking{
		ID: "b1", BusinessID: "biz1", StaffID: "st1", ServiceID: "svc1",
		Status: model.StatusCancelled,
	}
	svc := newTestService(store, &fakeSink{})

	if _, err := svc.Reschedule(context.Background(), "b1", testNow.Add(time.Hour)); !errors.Is(err, ErrNotReschedulable) {
		t.Fatalf("expected ErrNotReschedulable, got %v", err)
	}
}

func TestListSlots_DayResolution(t *testing.T) {
	store := newFakeStore()
	// 2026-02-02 is a Monday.
	store.weekly[time.Monday] = model.WorkingHours{BusinessID: "biz1", Weekday: time.Monday, IsWorking: true, StartMinute: 9 * 60, EndMinute: 18 * 60}
	svc := newTestService(store, &fakeSink{})

	slots, err := svc.ListSlots(context.Background(), "biz1", "svc1", "st1", "2026-02-02")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 17 || slots[0] != "09:00" || slots[16] != "17:00" {
		t.Fatalf("unexpected slots: %v", slots)
	}
}

func TestListSlots_ClosedException(t *testing.T) {
	store := newFakeStore()
	store.weekly[time.Monday] = model.WorkingHours{IsWorking: true, StartMinute: 9 * 60, EndMinute: 18 * 60}
	store.exceptions = append(store.exceptions, model.AvailabilityException{
		BusinessID: "biz1",
		Date:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Type:       model.ExceptionClosed,
	})
	svc := newTestService(store, &fakeSink{})

	slots, err := svc.ListSlots(context.Background(), "biz1", "svc1", "st1", "2026-02-02")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on closed day, got %v", slots)
	}
}

func TestListSlots_ClosedExceptionWesternTimezone(t *testing.T) {
	store := newFakeStore()
	store.businesses["biz1"] = model.Business{ID: "biz1", Name: "Cut&Go", Timezone: "America/New_York"}
	store.weekly[time.Monday] = model.WorkingHours{IsWorking: true, StartMinute: 9 * 60, EndMinute: 18 * 60}
	// The admin API stores exception dates as UTC midnight; the local
	// Monday in New York starts at 05:00Z, after that instant. The lookup
	// must still match by calendar date.
	store.exceptions = append(store.exceptions, model.AvailabilityException{
		BusinessID: "biz1",
		Date:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Type:       model.ExceptionClosed,
	})
	svc := newTestService(store, &fakeSink{})

	slots, err := svc.ListSlots(context.Background(), "biz1", "svc1", "st1", "2026-02-02")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("closed exception must hold in every timezone, got %v", slots)
	}
}

func TestListSlots_InvalidDate(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSink{})
	if _, err := svc.ListSlots(context.Background(), "biz1", "svc1", "st1", "02.02.2026"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

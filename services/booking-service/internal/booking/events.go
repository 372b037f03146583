package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

// eventPayload is the denormalized envelope consumers receive. Names and
// contact details ride along so the notification side can render messages
// without chasing references.
type eventPayload struct {
	BookingID        string `json:"booking_id"`
	BusinessID       string `json:"business_id"`
	StaffID          string `json:"staff_id"`
	ServiceID        string `json:"service_id"`
	ClientID         string `json:"client_id,omitempty"`
	Status           string `json:"status"`
	Source           string `json:"source"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	BusinessName     string `json:"business_name,omitempty"`
	BusinessTimezone string `json:"business_timezone,omitempty"`
	ServiceTitle     string `json:"service_title,omitempty"`
	StaffName        string `json:"staff_name,omitempty"`
	ClientName       string `json:"client_name,omitempty"`
	ClientPhone      string `json:"client_phone,omitempty"`
	ClientEmail      string `json:"client_email,omitempty"`
	ClientVKUserID   string `json:"client_vk_user_id,omitempty"`
}

func (s *Service) emit(ctx context.Context, eventType string, b model.Booking, biz model.Business, svc model.Service, staff model.Staff, client model.Client) {
	payload, err := json.Marshal(eventPayload{
		BookingID:        b.ID,
		BusinessID:       b.BusinessID,
		StaffID:          b.StaffID,
		ServiceID:        b.ServiceID,
		ClientID:         client.ID,
		Status:           string(b.Status),
		Source:           string(b.Source),
		StartTime:        b.StartTime.UTC().Format(time.RFC3339),
		EndTime:          b.EndTime.UTC().Format(time.RFC3339),
		BusinessName:     biz.Name,
		BusinessTimezone: biz.Timezone,
		ServiceTitle:     svc.Title,
		StaffName:        staff.Name,
		ClientName:       client.Name,
		ClientPhone:      client.Phone,
		ClientEmail:      client.Email,
		ClientVKUserID:   client.VKUserID,
	})
	if err != nil {
		s.logger.Error("failed to build event payload", "event_type", eventType, "booking_id", b.ID, "err", err)
		return
	}
	// Best-effort: a degraded notification pipeline must not fail the booking.
	if err := s.events.Emit(ctx, eventType, b.ID, payload); err != nil {
		s.logger.Warn("event emit failed; booking stands", "event_type", eventType, "booking_id", b.ID, "err", err)
	}
}

// emitForBooking reloads the display context before emitting. Lookup errors
// degrade to empty names rather than blocking the status change.
func (s *Service) emitForBooking(ctx context.Context, eventType string, b model.Booking) {
	biz, err := s.store.GetBusiness(ctx, b.BusinessID)
	if err != nil {
		s.logger.Warn("event context: business lookup failed", "booking_id", b.ID, "err", err)
	}
	svc, err := s.store.GetService(ctx, b.ServiceID)
	if err != nil {
		s.logger.Warn("event context: service lookup failed", "booking_id", b.ID, "err", err)
	}
	staff, err := s.store.GetStaff(ctx, b.StaffID)
	if err != nil {
		s.logger.Warn("event context: staff lookup failed", "booking_id", b.ID, "err", err)
	}
	var client model.Client
	if b.ClientID != "" {
		client, err = s.store.GetClient(ctx, b.ClientID)
		if err != nil {
			s.logger.Warn("event context: client lookup failed", "booking_id", b.ID, "err", err)
		}
	}
	s.emit(ctx, eventType, b, biz, svc, staff, client)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/booking"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	BusinessID  string `json:"business_id"`
	ServiceID   string `json:"service_id"`
	StaffID     string `json:"staff_id"`
	StartTime   string `json:"start_time"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email"`
	Source      string `json:"source"`
}

type bookingItem struct {
	BookingID string `json:"booking_id"`
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
	ClientID  string `json:"client_id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

type updateStatusRequest struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type rescheduleRequest struct {
	BookingID string `json:"booking_id"`
	StartTime string `json:"start_time"`
}

type deleteBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type conflictResponse struct {
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Conflicting *conflictItem `json:"conflicting_booking,omitempty"`
}

type conflictItem struct {
	BookingID    string `json:"booking_id"`
	ServiceTitle string `json:"service_title"`
	ClientName   string `json:"client_name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// Slots handles GET /api/v1/public/slots.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if businessID == "" || serviceID == "" || staffID == "" || date == "" {
		http.Error(w, "business_id, service_id, staff_id, and date are required", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.ListSlots(r.Context(), businessID, serviceID, staffID, date)
	if err != nil {
		h.writeError(w, r, err, "failed to list slots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

// Create handles POST /api/v1/public/book.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.BusinessID == "" || req.ServiceID == "" || req.StaffID == "" {
		http.Error(w, "business_id, service_id, and staff_id are required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Create(r.Context(), booking.CreateParams{
		BusinessID:  req.BusinessID,
		StaffID:     req.StaffID,
		ServiceID:   req.ServiceID,
		Start:       start,
		ClientID:    strings.TrimSpace(req.ClientID),
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		Source:      model.BookingSource(strings.TrimSpace(req.Source)),
	})
	if err != nil {
		h.writeError(w, r, err, "failed to create booking")
		return
	}
	writeJSON(w, http.StatusCreated, toBookingItem(b))
}

// UpdateStatus handles POST /api/v1/bookings/status.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	status, ok := model.ParseBookingStatus(strings.TrimSpace(req.Status))
	if !ok {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	b, err := h.svc.UpdateStatus(r.Context(), req.BookingID, status)
	if err != nil {
		h.writeError(w, r, err, "failed to update booking status")
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(b))
}

// Reschedule handles POST /api/v1/bookings/reschedule.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Reschedule(r.Context(), req.BookingID, start)
	if err != nil {
		h.writeError(w, r, err, "failed to reschedule booking")
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(b))
}

// List handles GET /api/v1/bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.svc.List(r.Context(), businessID, limit)
	if err != nil {
		h.writeError(w, r, err, "failed to list bookings")
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

// Delete handles POST /api/v1/bookings/delete.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Remove(r.Context(), req.BookingID); err != nil {
		h.writeError(w, r, err, "failed to delete booking")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": req.BookingID, "status": "deleted"})
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	var conflictErr *booking.ConflictError
	var transitionErr *booking.TransitionError
	switch {
	case errors.As(err, &conflictErr):
		resp := conflictResponse{Code: string(conflictErr.Code), Message: conflictErr.Message}
		if c := conflictErr.Conflicting; c != nil {
			resp.Conflicting = &conflictItem{
				BookingID:    c.ID,
				ServiceTitle: c.ServiceTitle,
				ClientName:   c.ClientName,
				StartTime:    c.Start.UTC().Format(time.RFC3339),
				EndTime:      c.End.UTC().Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrNotReschedulable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrForbidden):
		http.Error(w, "resource belongs to another business", http.StatusForbidden)
	case errors.Is(err, booking.ErrInvalidDate):
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
	default:
		h.logger.Error(logMsg, "err", err)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}

func toBookingItem(b model.Booking) bookingItem {
	return bookingItem{
		BookingID: b.ID,
		StaffID:   b.StaffID,
		ServiceID: b.ServiceID,
		ClientID:  b.ClientID,
		StartTime: b.StartTime.UTC().Format(time.RFC3339),
		EndTime:   b.EndTime.UTC().Format(time.RFC3339),
		Status:    string(b.Status),
		Source:    string(b.Source),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/olnovikova/slotline/services/booking-service/internal/booking"
	"github.com/olnovikova/slotline/services/booking-service/internal/calendar"
	"github.com/olnovikova/slotline/services/booking-service/internal/model"
	"github.com/olnovikova/slotline/services/booking-service/internal/storage"
)

// CalendarHandler serves the admin availability surface: weekly working
// hours and per-date exceptions.
type CalendarHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewCalendarHandler(repo *storage.Repository, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{repo: repo, logger: logger}
}

type workingHoursRequest struct {
	BusinessID string `json:"business_id"`
	Weekday    int    `json:"weekday"`
	IsWorking  bool   `json:"is_working"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

type exceptionRequest struct {
	BusinessID string `json:"business_id"`
	Date       string `json:"date"`
	Type       string `json:"type"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

type deleteExceptionRequest struct {
	BusinessID string `json:"business_id"`
	Date       string `json:"date"`
}

// UpsertWorkingHours handles PUT /api/v1/calendar/working-hours.
func (h *CalendarHandler) UpsertWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req workingHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	if req.BusinessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
		return
	}

	wh := model.WorkingHours{
		BusinessID: req.BusinessID,
		Weekday:    time.Weekday(req.Weekday),
		IsWorking:  req.IsWorking,
	}
	if req.IsWorking {
		start, end, ok := parseClockRange(req.Start, req.End)
		if !ok {
			http.Error(w, "start and end must be HH:MM with start before end", http.StatusBadRequest)
			return
		}
		wh.StartMinute = start
		wh.EndMinute = end
	}

	if err := h.repo.UpsertWorkingHours(r.Context(), wh); err != nil {
		h.logger.Error("failed to upsert working hours", "err", err)
		http.Error(w, "failed to save working hours", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business_id": wh.BusinessID,
		"weekday":     req.Weekday,
		"is_working":  wh.IsWorking,
	})
}

// UpsertException handles PUT /api/v1/calendar/exceptions.
func (h *CalendarHandler) UpsertException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	if req.BusinessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	excType := model.ExceptionType(strings.TrimSpace(req.Type))
	if excType != model.ExceptionClosed && excType != model.ExceptionOpenCustom {
		http.Error(w, "type must be closed or open_custom", http.StatusBadRequest)
		return
	}

	exc := model.AvailabilityException{
		BusinessID:  req.BusinessID,
		Date:        date,
		Type:        excType,
		StartMinute: -1,
		EndMinute:   -1,
	}
	if excType == model.ExceptionOpenCustom && (req.Start != "" || req.End != "") {
		start, end, ok := parseClockRange(req.Start, req.End)
		if !ok {
			http.Error(w, "start and end must be HH:MM with start before end", http.StatusBadRequest)
			return
		}
		exc.StartMinute = start
		exc.EndMinute = end
	}

	if err := h.repo.UpsertException(r.Context(), exc); err != nil {
		h.logger.Error("failed to upsert exception", "err", err)
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business_id": exc.BusinessID,
		"date":        req.Date,
		"type":        string(exc.Type),
	})
}

// DeleteException handles POST /api/v1/calendar/exceptions/delete.
func (h *CalendarHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	if req.BusinessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteException(r.Context(), req.BusinessID, date); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			http.Error(w, "exception not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete exception", "err", err)
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"business_id": req.BusinessID,
		"date":        req.Date,
		"status":      "deleted",
	})
}

func parseClockRange(start, end string) (int, int, bool) {
	s, err := calendar.ParseClock(strings.TrimSpace(start))
	if err != nil {
		return 0, 0, false
	}
	e, err := calendar.ParseClock(strings.TrimSpace(end))
	if err != nil {
		return 0, 0, false
	}
	if e <= s {
		return 0, 0, false
	}
	return s, e, true
}

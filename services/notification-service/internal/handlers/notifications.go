package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olnovikova/slotline/services/notification-service/internal/dispatch"
	"github.com/olnovikova/slotline/services/notification-service/internal/model"
)

type NotificationHandler struct {
	dispatcher *dispatch.Dispatcher
	store      dispatch.Store
	logger     *slog.Logger
}

func NewNotificationHandler(dispatcher *dispatch.Dispatcher, store dispatch.Store, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher, store: store, logger: logger}
}

type createNotificationRequest struct {
	BookingID string `json:"booking_id"`
	Channel   string `json:"channel"`
	Template  string `json:"template"`
	Message   string `json:"message"`
}

type resendRequest struct {
	NotificationID string `json:"notification_id"`
}

type notificationItem struct {
	NotificationID string `json:"notification_id"`
	BookingID      string `json:"booking_id"`
	ClientID       string `json:"client_id,omitempty"`
	Channel        string `json:"channel"`
	Template       string `json:"template"`
	Message        string `json:"message"`
	Status         string `json:"status"`
	ScheduledFor   string `json:"scheduled_for"`
	SentAt         string `json:"sent_at,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Create handles POST /api/v1/notifications.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	var channel model.Channel
	if raw := strings.TrimSpace(req.Channel); raw != "" {
		var err error
		channel, err = model.ParseChannel(raw)
		if err != nil {
			http.Error(w, "unknown channel", http.StatusBadRequest)
			return
		}
	}
	template := model.TemplateCreated
	if raw := strings.TrimSpace(req.Template); raw != "" {
		var err error
		template, err = model.ParseTemplate(raw)
		if err != nil {
			http.Error(w, "unknown template", http.StatusBadRequest)
			return
		}
	}

	n, err := h.dispatcher.Create(r.Context(), dispatch.CreateParams{
		BookingID: req.BookingID,
		Channel:   channel,
		Template:  template,
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		h.writeError(w, err, "failed to create notification")
		return
	}
	writeJSON(w, http.StatusCreated, toNotificationItem(n))
}

// Resend handles POST /api/v1/notifications/resend.
func (h *NotificationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.NotificationID = strings.TrimSpace(req.NotificationID)
	if req.NotificationID == "" {
		http.Error(w, "notification_id required", http.StatusBadRequest)
		return
	}

	outcome, err := h.dispatcher.Resend(r.Context(), req.NotificationID)
	if err != nil {
		h.writeError(w, err, "failed to resend notification")
		return
	}
	status := "sent"
	if !outcome.Sent {
		status = "failed"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"notification_id": req.NotificationID,
		"status":          status,
		"reason":          outcome.Reason,
	})
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
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

	notifications, err := h.store.ListByBusiness(r.Context(), businessID, limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "err", err)
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	items := make([]notificationItem, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, toNotificationItem(n))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, dispatch.ErrNoClient):
		http.Error(w, "booking has no client to notify", http.StatusBadRequest)
	case errors.Is(err, dispatch.ErrNoContact):
		http.Error(w, "client has no contact details", http.StatusBadRequest)
	case errors.Is(err, dispatch.ErrAlreadySent):
		http.Error(w, "notification already sent", http.StatusConflict)
	default:
		h.logger.Error(logMsg, "err", err)
		http.Error(w, logMsg, http.StatusInternalServerError)
	}
}

func toNotificationItem(n model.Notification) notificationItem {
	item := notificationItem{
		NotificationID: n.ID,
		BookingID:      n.BookingID,
		ClientID:       n.ClientID,
		Channel:        string(n.Channel),
		Template:       string(n.Template),
		Message:        n.Message,
		Status:         string(n.Status),
		ScheduledFor:   n.ScheduledFor.UTC().Format(time.RFC3339),
		FailureReason:  n.FailureReason,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.SentAt != nil {
		item.SentAt = n.SentAt.UTC().Format(time.RFC3339)
	}
	return item
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

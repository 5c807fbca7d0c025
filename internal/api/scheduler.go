package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/scheduler"
)

const (
	outboxLimit              = 50
	defaultReminderTimeOfDay = "09:00"
)

// SchedulerHandler exposes nurture sequences, reminders and delivered messages.
type SchedulerHandler struct {
	*Handler
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(base *Handler) *SchedulerHandler {
	return &SchedulerHandler{Handler: base}
}

// RegisterRoutes registers scheduler routes.
func (h *SchedulerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/nurture/{userID}", h.Nurture)
	r.Post("/api/reminders/{userID}", h.Reminder)
	r.Get("/api/outbox/{userID}", h.Outbox)
	r.Get("/api/scheduler", h.Pending)
}

// Nurture queues the product nurture sequence for a user.
func (h *SchedulerHandler) Nurture(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		NotFound(w, r)
		return
	}

	msgs := h.scheduler.ScheduleNurture(strconv.FormatInt(userID, 10))
	h.logger.Info("Nurture sequence scheduled", "user_id", userID, "messages", len(msgs))
	JSON(w, http.StatusAccepted, map[string]interface{}{
		"success":   true,
		"scheduled": len(msgs),
		"messages":  msgs,
	})
}

type reminderRequest struct {
	Message   string `json:"message"`
	TimeOfDay string `json:"time_of_day"`
}

// Reminder queues a one-shot reminder at the next HH:MM.
func (h *SchedulerHandler) Reminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		NotFound(w, r)
		return
	}

	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Dữ liệu không hợp lệ")
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		Error(w, http.StatusBadRequest, "Tin nhắn không được trống")
		return
	}
	timeOfDay := strings.TrimSpace(req.TimeOfDay)
	if timeOfDay == "" {
		timeOfDay = defaultReminderTimeOfDay
	}

	msg, err := h.scheduler.ScheduleDailyReminder(strconv.FormatInt(userID, 10), body, timeOfDay)
	if errors.Is(err, scheduler.ErrInvalidTimeOfDay) {
		Error(w, http.StatusBadRequest, "Giờ không hợp lệ, định dạng HH:MM")
		return
	}
	if err != nil {
		h.logger.Error("Failed to schedule reminder", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}

	JSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"id":      msg.ID,
		"fire_at": msg.FireAt,
	})
}

// Outbox lists the scheduled messages already sent to a user.
func (h *SchedulerHandler) Outbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		NotFound(w, r)
		return
	}

	msgs, err := h.repo.ListOutbound(r.Context(), userID, outboxLimit)
	if err != nil {
		h.logger.Error("Failed to load outbox", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}
	if msgs == nil {
		msgs = []domain.OutboundMessage{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"total":    len(msgs),
		"messages": msgs,
	})
}

// Pending lists queued messages, optionally for one recipient.
func (h *SchedulerHandler) Pending(w http.ResponseWriter, r *http.Request) {
	var pending []scheduler.Message
	if recipient := r.URL.Query().Get("recipient_id"); recipient != "" {
		pending = h.scheduler.PendingFor(recipient)
	} else {
		pending = h.scheduler.Pending()
	}
	if pending == nil {
		pending = []scheduler.Message{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   len(pending),
		"pending": pending,
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unigrow/unigrow-bot/internal/actions"
)

// ActionHandler exposes the registry over the Rasa action-server protocol.
type ActionHandler struct {
	*Handler
}

// NewActionHandler creates a new action server handler.
func NewActionHandler(base *Handler) *ActionHandler {
	return &ActionHandler{Handler: base}
}

// RegisterRoutes registers action server routes.
func (h *ActionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Webhook)
	r.Get("/actions", h.List)
}

// Webhook runs the action named by next_action.
func (h *ActionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req actions.WebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Dữ liệu không hợp lệ")
		return
	}

	resp, err := h.actions.HandleWebhook(r.Context(), req)
	if errors.Is(err, actions.ErrUnknownAction) {
		h.logger.Warn("Unknown action requested", "action", req.NextAction, "sender_id", req.SenderID)
		JSON(w, http.StatusNotFound, map[string]string{
			"error":       "No registered action found for name '" + req.NextAction + "'.",
			"action_name": req.NextAction,
		})
		return
	}
	if err != nil {
		h.logger.Error("Action failed", "error", err, "action", req.NextAction, "sender_id", req.SenderID)
		JSON(w, http.StatusInternalServerError, map[string]string{
			"error":       err.Error(),
			"action_name": req.NextAction,
		})
		return
	}
	JSON(w, http.StatusOK, resp)
}

// List returns the registered action names.
func (h *ActionHandler) List(w http.ResponseWriter, _ *http.Request) {
	names := h.actions.Names()
	out := make([]map[string]string, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]string{"name": name})
	}
	JSON(w, http.StatusOK, out)
}

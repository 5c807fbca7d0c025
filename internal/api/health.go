package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	botName            = "Unigrow Chatbot"
	botVersion         = "1.0.0"
	healthCheckTimeout = 5 * time.Second
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// Health returns the health status of the API and its dependencies. Only a
// database failure degrades the status; the bot answers with canned text
// when the model or dialogue engine is down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status":    "healthy",
		"bot_name":  botName,
		"version":   botVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"database":  "ok",
		"llm":       "disabled",
		"dialogue":  "unavailable",
	}
	statusCode := http.StatusOK

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if h.llm != nil {
		status["llm"] = "ok"
		if err := h.llm.Ping(ctx); err != nil {
			h.logger.Warn("LLM unreachable", "error", err)
			status["llm"] = "unreachable"
		}
	}
	if h.dialogue != nil {
		status["dialogue"] = "ok"
		if err := h.dialogue.Ready(ctx); err != nil {
			h.logger.Warn("Dialogue engine not ready", "error", err)
			status["dialogue"] = "unavailable"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

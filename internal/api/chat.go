package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unigrow/unigrow-bot/internal/chat"
	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/identity"
)

// historyLimit is the number of exchanges returned by the history endpoint.
const historyLimit = 50

// ChatHandler handles chat, history and analytics endpoints.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.Chat)
	r.Get("/api/history/{userID}", h.History)
	r.Get("/api/analytics/{userID}", h.Analytics)
}

type chatRequest struct {
	UserID  flexibleID `json:"user_id"`
	Message string     `json:"message"`
}

// Chat sends a message to the dialogue engine and returns its reply.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Dữ liệu không hợp lệ")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "Tin nhắn không được trống")
		return
	}

	userID := int64(req.UserID)
	if userID == 0 {
		if id, ok := identity.ParseUserID(r.Header.Get(identity.UserHeaderName)); ok {
			userID = id
		}
	}
	if userID == 0 {
		Error(w, http.StatusUnauthorized, "Cần đăng nhập trước")
		return
	}

	if h.chat == nil {
		Error(w, http.StatusServiceUnavailable, "Bot không hoạt động")
		return
	}
	turn, err := h.chat.Reply(r.Context(), userID, message)
	if errors.Is(err, chat.ErrEngineUnavailable) {
		Error(w, http.StatusServiceUnavailable, "Bot không hoạt động")
		return
	}
	if err != nil {
		h.logger.Error("Chat failed", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}

	resp := map[string]interface{}{
		"success":      true,
		"user_message": turn.UserMessage,
		"bot_response": turn.BotResponse,
		"timestamp":    turn.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if turn.Image != "" {
		resp["image"] = turn.Image
	}
	JSON(w, http.StatusOK, resp)
}

// History returns the latest exchanges of a user, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		NotFound(w, r)
		return
	}

	exchanges, err := h.repo.ListExchanges(r.Context(), userID, historyLimit)
	if err != nil {
		h.logger.Error("Failed to load history", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}
	if exchanges == nil {
		exchanges = []domain.ChatExchange{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   len(exchanges),
		"history": exchanges,
	})
}

// Analytics returns the message counters of a user. Registered users
// without any turn yet report zeros.
func (h *ChatHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		NotFound(w, r)
		return
	}
	ctx := r.Context()

	a, err := h.repo.GetAnalytics(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load analytics", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Lỗi server")
		return
	}
	if a == nil {
		user, err := h.repo.GetUser(ctx, userID)
		if err != nil {
			h.logger.Error("Failed to load user", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "Lỗi server")
			return
		}
		if user == nil {
			Error(w, http.StatusNotFound, "Không tìm thấy thống kê")
			return
		}
		a = &domain.Analytics{UserID: userID, LastActive: user.CreatedAt}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":               true,
		"total_messages":        a.TotalMessages,
		"average_response_time": a.AverageResponseTime,
		"last_active":           a.LastActive.UTC().Format(time.RFC3339Nano),
	})
}

package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/unigrow/unigrow-bot/internal/chat"
	"github.com/unigrow/unigrow-bot/internal/identity"
)

// Frame types.
const (
	msgChat      = "chat"
	msgReply     = "reply"
	msgPing      = "ping"
	msgPong      = "pong"
	msgScheduled = "scheduled"
	msgError     = "error"
)

// wsMessage represents WebSocket message structure.
type wsMessage struct {
	Type      string     `json:"type"`
	Content   string     `json:"content,omitempty"`
	Image     string     `json:"image,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Replier answers chat frames. *chat.Service satisfies it.
type Replier interface {
	Reply(ctx context.Context, userID int64, text string) (chat.Turn, error)
}

// WebSocketHandler serves live chat sessions.
type WebSocketHandler struct {
	chat          Replier
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(replier Replier, sm *SessionManager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		chat:          replier,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade. It expects
// identity.Middleware to have run.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"Thiếu user_id"}`, http.StatusUnauthorized)
		return
	}
	userID := strconv.FormatInt(uid, 10)
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, uid)
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID int64) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			// Bare text frames are treated as chat messages.
			msg = wsMessage{Type: msgChat, Content: string(message)}
		}

		var out wsMessage
		switch msg.Type {
		case msgChat:
			out = h.reply(ctx, userID, msg.Content)
		case msgPing:
			out = wsMessage{Type: msgPong}
		default:
			out = wsMessage{Type: msgError, Content: "unsupported message type: " + msg.Type}
		}

		if err := writeJSON(ctx, ws, out); err != nil {
			slog.Debug("Failed to write frame", "error", err, "user_id", userID, "type", out.Type)
			return
		}
	}
}

func (h *WebSocketHandler) reply(ctx context.Context, userID int64, text string) wsMessage {
	if text == "" {
		return wsMessage{Type: msgError, Content: "Tin nhắn trống"}
	}
	turn, err := h.chat.Reply(ctx, userID, text)
	if err != nil {
		slog.Warn("Chat reply failed", "error", err, "user_id", userID)
		return wsMessage{Type: msgError, Content: "Dịch vụ hội thoại không khả dụng"}
	}
	ts := turn.Timestamp
	return wsMessage{Type: msgReply, Content: turn.BotResponse, Image: turn.Image, Timestamp: &ts}
}

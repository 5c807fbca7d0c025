package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/identity"
)

const writeTimeout = 5 * time.Second

// OutboxStore records delivered scheduled messages. store.Repository satisfies it.
type OutboxStore interface {
	RecordOutbound(ctx context.Context, msg *domain.OutboundMessage) error
}

// Notifier delivers scheduler messages to live sockets and the outbox.
type Notifier struct {
	sm     *SessionManager
	store  OutboxStore
	logger *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(sm *SessionManager, store OutboxStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sm: sm, store: store, logger: logger}
}

// Deliver pushes body to every live session of recipientID and records it.
// It fails when the outbox write fails or every live socket write fails.
// Non-numeric recipients (such as Rasa sender IDs) are pushed but not recorded.
func (n *Notifier) Deliver(ctx context.Context, recipientID, body string) error {
	conns := n.sm.Connections(recipientID)

	var writeErrs []error
	for _, conn := range conns {
		if err := writeJSON(ctx, conn, wsMessage{Type: msgScheduled, Content: body}); err != nil {
			writeErrs = append(writeErrs, err)
		}
	}
	delivered := len(conns) > 0 && len(writeErrs) < len(conns)

	if userID, ok := identity.ParseUserID(recipientID); ok && n.store != nil {
		msg := &domain.OutboundMessage{UserID: userID, Body: body, Delivered: delivered}
		if err := n.store.RecordOutbound(ctx, msg); err != nil {
			return fmt.Errorf("record outbound message: %w", err)
		}
	} else if !ok {
		n.logger.Debug("recipient is not a user id, outbox skipped", "recipient_id", recipientID)
	}

	if len(conns) > 0 && !delivered {
		return fmt.Errorf("push to %s: %w", recipientID, errors.Join(writeErrs...))
	}
	n.logger.Debug("scheduled message delivered",
		"recipient_id", recipientID,
		"sessions", len(conns),
		"live", delivered)
	return nil
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

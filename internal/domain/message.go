package domain

import (
	"time"
)

// ChatExchange is one persisted chat turn.
type ChatExchange struct {
	ID          int64     `json:"-"`
	UserID      int64     `json:"-"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutboundMessage is a scheduler-initiated message delivered to a user.
type OutboundMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
	Delivered bool      `json:"delivered"`
}

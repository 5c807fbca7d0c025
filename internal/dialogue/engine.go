// Package dialogue turns an inbound chat message into bot responses, either
// through a remote Rasa server or the built-in scripted engine.
package dialogue

import "context"

// Response is one bot message.
type Response struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Engine produces the responses for one user message.
type Engine interface {
	Handle(ctx context.Context, senderID, text string) ([]Response, error)
	// Ready reports whether the engine can currently serve requests.
	Ready(ctx context.Context) error
}

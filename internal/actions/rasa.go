package actions

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/unigrow/unigrow-bot/internal/conversation"
	"github.com/unigrow/unigrow-bot/internal/domain"
)

// Rasa slot names and their conversation package equivalents.
var rasaSlots = map[string]string{
	"user_age":      conversation.SlotAge,
	"user_height":   conversation.SlotHeight,
	"target_height": conversation.SlotTargetHeight,
}

// RasaSlotName maps a conversation slot name to the Rasa domain name.
func RasaSlotName(slot string) string {
	for rasa, local := range rasaSlots {
		if local == slot {
			return rasa
		}
	}
	return slot
}

// WebhookRequest is the body Rasa posts to an action server.
type WebhookRequest struct {
	NextAction string         `json:"next_action"`
	SenderID   string         `json:"sender_id"`
	Tracker    WebhookTracker `json:"tracker"`
}

// WebhookTracker is the subset of the Rasa tracker the actions read.
type WebhookTracker struct {
	SenderID      string         `json:"sender_id"`
	Slots         map[string]any `json:"slots"`
	LatestMessage struct {
		Text     string          `json:"text"`
		Entities []WebhookEntity `json:"entities"`
	} `json:"latest_message"`
}

// WebhookEntity accepts any JSON value for the entity value.
type WebhookEntity struct {
	Entity string `json:"entity"`
	Value  any    `json:"value"`
}

// WebhookEvent is a Rasa tracker event.
type WebhookEvent struct {
	Event string `json:"event"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

// WebhookResponse is the action server reply.
type WebhookResponse struct {
	Events    []WebhookEvent `json:"events"`
	Responses []Response     `json:"responses"`
}

// HandleWebhook runs the requested action for a Rasa server.
func (r *Registry) HandleWebhook(ctx context.Context, req WebhookRequest) (*WebhookResponse, error) {
	senderID := req.SenderID
	if senderID == "" {
		senderID = req.Tracker.SenderID
	}

	t := &Tracker{
		SenderID: senderID,
		Text:     req.Tracker.LatestMessage.Text,
		Slots:    slotsFromRasa(senderID, req.Tracker.Slots),
	}
	for _, e := range req.Tracker.LatestMessage.Entities {
		if v := valueString(e.Value); v != "" {
			t.Entities = append(t.Entities, Entity{Entity: e.Entity, Value: v})
		}
	}

	var d Dispatcher
	events, err := r.Run(ctx, req.NextAction, &d, t)
	if err != nil {
		return nil, err
	}

	resp := &WebhookResponse{Events: []WebhookEvent{}, Responses: d.Responses()}
	if resp.Responses == nil {
		resp.Responses = []Response{}
	}
	for _, ev := range events {
		var value any = ev.Value
		if ev.Value == "" {
			value = nil
		}
		resp.Events = append(resp.Events, WebhookEvent{Event: ev.Event, Name: RasaSlotName(ev.Name), Value: value})
	}
	return resp, nil
}

func slotsFromRasa(senderID string, slots map[string]any) *domain.ConversationState {
	s := &domain.ConversationState{UserID: senderID}
	for name, raw := range slots {
		local, ok := rasaSlots[name]
		if !ok {
			continue
		}
		v := valueString(raw)
		switch local {
		case conversation.SlotAge:
			if age, err := strconv.Atoi(v); err == nil {
				s.Age = &age
			}
		case conversation.SlotHeight:
			s.Height = v
		case conversation.SlotTargetHeight:
			s.TargetHeight = v
		}
	}
	return s
}

// valueString renders slot and entity values, which Rasa may send as
// strings or numbers.
func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

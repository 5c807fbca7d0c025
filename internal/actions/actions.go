// Package actions holds the scripted response handlers. They run either
// inside the built-in dialogue engine or behind the Rasa action-server
// webhook.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/unigrow/unigrow-bot/internal/conversation"
	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/llm"
	"github.com/unigrow/unigrow-bot/internal/scheduler"
)

// ErrUnknownAction is returned when no action is registered under a name.
var ErrUnknownAction = errors.New("unknown action")

// Entity names carried on the latest message.
const (
	EntityAge           = "age"
	EntityCurrentHeight = "current_height"
	EntityTargetHeight  = "target_height"
)

// Response is one bot utterance.
type Response struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Dispatcher collects the utterances produced by actions.
type Dispatcher struct {
	responses []Response
}

// Utter queues a text message.
func (d *Dispatcher) Utter(text string) {
	d.responses = append(d.responses, Response{Text: text})
}

// UtterImage queues a message with an attached image.
func (d *Dispatcher) UtterImage(text, image string) {
	d.responses = append(d.responses, Response{Text: text, Image: image})
}

// Responses returns everything uttered so far.
func (d *Dispatcher) Responses() []Response {
	return d.responses
}

// Entity is an extracted value on the latest message.
type Entity struct {
	Entity string `json:"entity"`
	Value  string `json:"value"`
}

// Tracker is the conversation view an action runs against.
type Tracker struct {
	SenderID string
	Text     string
	Entities []Entity
	Slots    *domain.ConversationState
}

// Entity returns the first entity value with the given name.
func (t *Tracker) Entity(name string) (string, bool) {
	for _, e := range t.Entities {
		if e.Entity == name && e.Value != "" {
			return e.Value, true
		}
	}
	return "", false
}

// Apply folds slot events into the tracker so later actions in the same
// turn see them.
func (t *Tracker) Apply(events []Event) {
	if t.Slots == nil {
		t.Slots = &domain.ConversationState{UserID: t.SenderID}
	}
	for _, ev := range events {
		if ev.Event != EventSlot {
			continue
		}
		switch ev.Name {
		case conversation.SlotAge:
			if ev.Value == "" {
				t.Slots.Age = nil
				continue
			}
			if age, err := strconv.Atoi(ev.Value); err == nil {
				t.Slots.Age = &age
			}
		case conversation.SlotHeight:
			t.Slots.Height = ev.Value
		case conversation.SlotTargetHeight:
			t.Slots.TargetHeight = ev.Value
		}
	}
}

// EventSlot is the event type for slot updates.
const EventSlot = "slot"

// Event is a tracker event returned by an action. Slot names use the
// conversation package names.
type Event struct {
	Event string
	Name  string
	Value string
}

// SlotSet builds a slot update event.
func SlotSet(name, value string) Event {
	return Event{Event: EventSlot, Name: name, Value: value}
}

// SlotUpdates converts slot events into the map taken by conversation.Tracker.Apply.
func SlotUpdates(events []Event) map[string]string {
	updates := make(map[string]string)
	for _, ev := range events {
		if ev.Event == EventSlot {
			updates[ev.Name] = ev.Value
		}
	}
	return updates
}

// Action is a named scripted handler.
type Action interface {
	Name() string
	Run(ctx context.Context, d *Dispatcher, t *Tracker) ([]Event, error)
}

// Generator produces fallback answers. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) string
}

// NurtureScheduler queues the nurture sequence. *scheduler.Scheduler satisfies it.
type NurtureScheduler interface {
	ScheduleNurture(recipientID string) []scheduler.Message
	PendingFor(recipientID string) []scheduler.Message
}

// ImageLocator resolves product pictures. *media.Catalog satisfies it.
type ImageLocator interface {
	ProductImageURL(product string) (string, bool)
}

// Deps are the collaborators actions may use. Any of them may be nil.
type Deps struct {
	LLM       Generator
	Scheduler NurtureScheduler
	Media     ImageLocator
	Logger    *slog.Logger
}

// Registry maps action names to actions.
type Registry struct {
	actions map[string]Action
	logger  *slog.Logger
}

// NewRegistry registers every built-in action.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := &Registry{actions: make(map[string]Action), logger: deps.Logger}
	for _, a := range builtin(deps) {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an action.
func (r *Registry) Register(a Action) {
	r.actions[a.Name()] = a
}

// Get looks up an action by name.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named action against t and applies its events to t.
func (r *Registry) Run(ctx context.Context, name string, d *Dispatcher, t *Tracker) ([]Event, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}

	events, err := a.Run(ctx, d, t)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	t.Apply(events)
	r.logger.Debug("action ran", "action", name, "sender_id", t.SenderID, "events", len(events))
	return events, nil
}

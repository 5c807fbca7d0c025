// Package conversation tracks the per-user slots gathered during a chat.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/unigrow/unigrow-bot/internal/domain"
)

// Slot names.
const (
	SlotAge          = "age"
	SlotHeight       = "height"
	SlotTargetHeight = "targetHeight"
)

// ErrUnknownSlot is returned for slot names outside the fixed set.
var ErrUnknownSlot = errors.New("unknown slot")

// Store persists conversation slots. store.Repository satisfies it.
type Store interface {
	GetConversationState(ctx context.Context, userID string) (*domain.ConversationState, error)
	SaveConversationState(ctx context.Context, state *domain.ConversationState) error
}

// Tracker is an in-memory slot cache with write-through persistence.
type Tracker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]*domain.ConversationState

	turnMu sync.Mutex
	turns  map[string]*sync.Mutex
}

// NewTracker creates a Tracker. A nil store keeps slots in memory only.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		states: make(map[string]*domain.ConversationState),
		turns:  make(map[string]*sync.Mutex),
	}
}

// Lock serialises whole turns for one user and returns the unlock function.
func (t *Tracker) Lock(userID string) func() {
	t.turnMu.Lock()
	m, ok := t.turns[userID]
	if !ok {
		m = &sync.Mutex{}
		t.turns[userID] = m
	}
	t.turnMu.Unlock()

	m.Lock()
	return m.Unlock
}

// State returns a copy of the user's slots. Unknown users get an empty state.
func (t *Tracker) State(ctx context.Context, userID string) (*domain.ConversationState, error) {
	s, err := t.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return s.Clone(), nil
}

// GetSlot returns a slot value and whether it is set.
func (t *Tracker) GetSlot(ctx context.Context, userID, slot string) (string, bool, error) {
	if !validSlot(slot) {
		return "", false, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	s, err := t.load(ctx, userID)
	if err != nil {
		return "", false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	v := slotValue(s, slot)
	return v, v != "", nil
}

// SetSlot stores one slot value. An empty value clears the slot.
func (t *Tracker) SetSlot(ctx context.Context, userID, slot, value string) error {
	return t.Apply(ctx, userID, map[string]string{slot: value})
}

// Apply stores several slots at once. Nothing is written if any name or
// value is invalid.
func (t *Tracker) Apply(ctx context.Context, userID string, updates map[string]string) error {
	for slot, value := range updates {
		if !validSlot(slot) {
			return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
		}
		if slot == SlotAge && value != "" {
			if _, err := strconv.Atoi(value); err != nil {
				return fmt.Errorf("invalid age %q: %w", value, err)
			}
		}
	}

	s, err := t.load(ctx, userID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for slot, value := range updates {
		setSlotValue(s, slot, value)
	}
	s.UpdatedAt = t.now()
	snapshot := s.Clone()
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}
	if err := t.store.SaveConversationState(ctx, snapshot); err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	return nil
}

// load returns the cached state, reading it from the store on first use.
func (t *Tracker) load(ctx context.Context, userID string) (*domain.ConversationState, error) {
	t.mu.Lock()
	s, ok := t.states[userID]
	t.mu.Unlock()
	if ok {
		return s, nil
	}

	var loaded *domain.ConversationState
	if t.store != nil {
		var err error
		loaded, err = t.store.GetConversationState(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load conversation state: %w", err)
		}
	}
	if loaded == nil {
		loaded = &domain.ConversationState{UserID: userID}
	} else {
		t.logger.Debug("conversation state restored", "user_id", userID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[userID]; ok {
		return s, nil
	}
	t.states[userID] = loaded
	return loaded, nil
}

func validSlot(slot string) bool {
	switch slot {
	case SlotAge, SlotHeight, SlotTargetHeight:
		return true
	}
	return false
}

func slotValue(s *domain.ConversationState, slot string) string {
	switch slot {
	case SlotAge:
		return s.AgeString()
	case SlotHeight:
		return s.Height
	case SlotTargetHeight:
		return s.TargetHeight
	}
	return ""
}

// setSlotValue assumes the value was validated by Apply.
func setSlotValue(s *domain.ConversationState, slot, value string) {
	switch slot {
	case SlotAge:
		if value == "" {
			s.Age = nil
			return
		}
		age, _ := strconv.Atoi(value)
		s.Age = &age
	case SlotHeight:
		s.Height = value
	case SlotTargetHeight:
		s.TargetHeight = value
	}
}

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unigrow/unigrow-bot/internal/domain"
)

type fakeStore struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
	saves  int
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]*domain.ConversationState)}
}

func (f *fakeStore) GetConversationState(_ context.Context, userID string) (*domain.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[userID].Clone(), nil
}

func (f *fakeStore) SaveConversationState(_ context.Context, state *domain.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves++
	f.states[state.UserID] = state.Clone()
	return nil
}

func TestSetAndGetSlot(t *testing.T) {
	t.Parallel()
	tr := NewTracker(newFakeStore(), nil)
	ctx := context.Background()

	if _, ok, err := tr.GetSlot(ctx, "u1", SlotAge); err != nil || ok {
		t.Fatalf("GetSlot before set = ok %v err %v", ok, err)
	}

	if err := tr.SetSlot(ctx, "u1", SlotAge, "20"); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	if err := tr.SetSlot(ctx, "u1", SlotHeight, "160"); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}

	v, ok, err := tr.GetSlot(ctx, "u1", SlotAge)
	if err != nil || !ok || v != "20" {
		t.Fatalf("GetSlot(age) = %q, %v, %v", v, ok, err)
	}

	// Slots are retained until overwritten.
	if err := tr.SetSlot(ctx, "u1", SlotHeight, "165"); err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	s, err := tr.State(ctx, "u1")
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if s.Height != "165" || s.AgeString() != "20" {
		t.Fatalf("unexpected state: %+v", s)
	}
}

func TestUnknownSlot(t *testing.T) {
	t.Parallel()
	tr := NewTracker(nil, nil)
	ctx := context.Background()

	if err := tr.SetSlot(ctx, "u1", "weight", "50"); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("SetSlot error = %v, want ErrUnknownSlot", err)
	}
	if _, _, err := tr.GetSlot(ctx, "u1", "weight"); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("GetSlot error = %v, want ErrUnknownSlot", err)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	t.Parallel()
	tr := NewTracker(nil, nil)
	ctx := context.Background()

	err := tr.Apply(ctx, "u1", map[string]string{SlotHeight: "160", SlotAge: "abc"})
	if err == nil {
		t.Fatal("expected invalid age to fail")
	}
	s, _ := tr.State(ctx, "u1")
	if !s.IsEmpty() {
		t.Fatalf("expected no slot written, got %+v", s)
	}
}

func TestStateIsACopy(t *testing.T) {
	t.Parallel()
	tr := NewTracker(nil, nil)
	ctx := context.Background()

	_ = tr.SetSlot(ctx, "u1", SlotAge, "17")
	s, _ := tr.State(ctx, "u1")
	*s.Age = 99
	s.Height = "999"

	again, _ := tr.State(ctx, "u1")
	if again.AgeString() != "17" || again.Height != "" {
		t.Fatalf("cached state mutated through copy: %+v", again)
	}
}

func TestWriteThroughAndRestore(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ctx := context.Background()

	tr := NewTracker(store, nil)
	fixed := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return fixed }
	if err := tr.Apply(ctx, "u1", map[string]string{SlotAge: "20", SlotTargetHeight: "175"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected one save, got %d", store.saves)
	}
	if !store.states["u1"].UpdatedAt.Equal(fixed) {
		t.Fatalf("UpdatedAt = %v, want %v", store.states["u1"].UpdatedAt, fixed)
	}

	restarted := NewTracker(store, nil)
	v, ok, err := restarted.GetSlot(ctx, "u1", SlotTargetHeight)
	if err != nil || !ok || v != "175" {
		t.Fatalf("restored GetSlot = %q, %v, %v", v, ok, err)
	}
}

func TestSaveErrorIsReturned(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.err = errors.New("disk full")
	tr := NewTracker(store, nil)

	if err := tr.SetSlot(context.Background(), "u1", SlotHeight, "160"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestLockSerialisesTurns(t *testing.T) {
	t.Parallel()
	tr := NewTracker(nil, nil)

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tr.Lock("u1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most one concurrent turn, got %d", maxActive)
	}
}

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unigrow/unigrow-bot/internal/dialogue"
	"github.com/unigrow/unigrow-bot/internal/domain"
)

type fakeEngine struct {
	responses []dialogue.Response
	err       error
	senders   []string
}

func (f *fakeEngine) Handle(_ context.Context, senderID, _ string) ([]dialogue.Response, error) {
	f.senders = append(f.senders, senderID)
	return f.responses, f.err
}

func (f *fakeEngine) Ready(context.Context) error { return nil }

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	exchanges []domain.ChatExchange
	turns     []time.Duration
	appendErr error
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeStore) AppendExchange(_ context.Context, ex *domain.ChatExchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.exchanges = append(f.exchanges, *ex)
	return nil
}

func (f *fakeStore) RecordTurn(_ context.Context, _ int64, _ time.Time, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, d)
	return nil
}

func TestReplyFirstNonEmptyResponseWins(t *testing.T) {
	engine := &fakeEngine{responses: []dialogue.Response{
		{Image: "/media/images/unigrow.png"},
		{Text: "Bạn 20 tuổi - tuổi phát triển tốt! 💪"},
		{Text: "second"},
	}}
	store := &fakeStore{users: map[int64]*domain.User{1: {ID: 1}}}
	svc := NewService(engine, store, nil)

	turn, err := svc.Reply(context.Background(), 1, "tôi 20 tuổi")
	if err != nil {
		t.Fatalf("Reply error = %v", err)
	}
	if turn.BotResponse != "Bạn 20 tuổi - tuổi phát triển tốt! 💪" {
		t.Fatalf("BotResponse = %q", turn.BotResponse)
	}
	if engine.senders[0] != "1" {
		t.Fatalf("sender = %q, want \"1\"", engine.senders[0])
	}
	if len(store.exchanges) != 1 || store.exchanges[0].UserMessage != "tôi 20 tuổi" {
		t.Fatalf("exchanges = %+v", store.exchanges)
	}
	if len(store.turns) != 1 {
		t.Fatalf("analytics updates = %d, want 1", len(store.turns))
	}
}

func TestReplyFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{name: "engine error", engine: &fakeEngine{err: errors.New("connection refused")}},
		{name: "no responses", engine: &fakeEngine{}},
		{name: "only images", engine: &fakeEngine{responses: []dialogue.Response{{Image: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{users: map[int64]*domain.User{1: {ID: 1}}}
			turn, err := NewService(tt.engine, store, nil).Reply(context.Background(), 1, "???")
			if err != nil {
				t.Fatalf("Reply error = %v", err)
			}
			if turn.BotResponse != FallbackReply {
				t.Fatalf("BotResponse = %q, want fallback", turn.BotResponse)
			}
			if len(store.exchanges) != 1 || store.exchanges[0].BotResponse != FallbackReply {
				t.Fatalf("fallback exchange not persisted: %+v", store.exchanges)
			}
		})
	}
}

func TestReplySkipsPersistenceForUnknownUser(t *testing.T) {
	store := &fakeStore{users: map[int64]*domain.User{}}
	svc := NewService(&fakeEngine{responses: []dialogue.Response{{Text: "hi"}}}, store, nil)

	if _, err := svc.Reply(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("Reply error = %v", err)
	}
	if len(store.exchanges) != 0 || len(store.turns) != 0 {
		t.Fatalf("unexpected writes: %+v %+v", store.exchanges, store.turns)
	}
}

func TestReplyPersistenceErrorIsNotSurfaced(t *testing.T) {
	store := &fakeStore{users: map[int64]*domain.User{1: {ID: 1}}, appendErr: errors.New("database is locked")}
	svc := NewService(&fakeEngine{responses: []dialogue.Response{{Text: "ok"}}}, store, nil)

	turn, err := svc.Reply(context.Background(), 1, "hello")
	if err != nil || turn.BotResponse != "ok" {
		t.Fatalf("Reply = %+v, %v", turn, err)
	}
	if len(store.turns) != 1 {
		t.Fatalf("analytics should still be recorded, got %d", len(store.turns))
	}
}

func TestReplyWithoutEngine(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, err := svc.Reply(context.Background(), 1, "hello"); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("Reply error = %v, want ErrEngineUnavailable", err)
	}
}

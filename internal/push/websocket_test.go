package push

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/unigrow/unigrow-bot/internal/chat"
	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/identity"
)

type echoReplier struct {
	err error
}

func (e echoReplier) Reply(_ context.Context, _ int64, text string) (chat.Turn, error) {
	if e.err != nil {
		return chat.Turn{}, e.err
	}
	return chat.Turn{UserMessage: text, BotResponse: "echo: " + text, Timestamp: time.Now()}, nil
}

type memOutbox struct {
	mu   sync.Mutex
	msgs []domain.OutboundMessage
	err  error
}

func (m *memOutbox) RecordOutbound(_ context.Context, msg *domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memOutbox) all() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.msgs...)
}

func startServer(t *testing.T, replier Replier, sm *SessionManager) *httptest.Server {
	t.Helper()
	h := identity.Middleware()(NewWebSocketHandler(replier, sm, "*", true))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg wsMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForSessions(t *testing.T, sm *SessionManager, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sm.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("session count = %d, want %d", sm.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketChatAndPing(t *testing.T) {
	sm := NewSessionManager()
	srv := startServer(t, echoReplier{}, sm)
	conn := dial(t, srv, "user_id=7&session_id=tab-1")
	ctx := context.Background()

	if err := wsjson.Write(ctx, conn, wsMessage{Type: msgChat, Content: "xin chào"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readFrame(t, conn)
	if got.Type != msgReply || got.Content != "echo: xin chào" || got.Timestamp == nil {
		t.Fatalf("reply frame = %+v", got)
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: msgPing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readFrame(t, conn); got.Type != msgPong {
		t.Fatalf("ping frame = %+v", got)
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: "resize"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readFrame(t, conn); got.Type != msgError {
		t.Fatalf("unknown frame reply = %+v", got)
	}

	if sm.GetActive("7", "tab-1") == nil {
		t.Fatal("expected session to be registered")
	}
}

func TestWebSocketChatEngineUnavailable(t *testing.T) {
	sm := NewSessionManager()
	srv := startServer(t, echoReplier{err: chat.ErrEngineUnavailable}, sm)
	conn := dial(t, srv, "user_id=7")

	if err := wsjson.Write(context.Background(), conn, wsMessage{Type: msgChat, Content: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readFrame(t, conn); got.Type != msgError {
		t.Fatalf("frame = %+v", got)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	srv := startServer(t, echoReplier{}, NewSessionManager())
	resp, err := http.Get(srv.URL + "/ws/chat")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestNotifierDeliversToLiveSessions(t *testing.T) {
	sm := NewSessionManager()
	srv := startServer(t, echoReplier{}, sm)
	tab1 := dial(t, srv, "user_id=7&session_id=tab-1")
	tab2 := dial(t, srv, "user_id=7&session_id=tab-2")
	waitForSessions(t, sm, 2)

	outbox := &memOutbox{}
	n := NewNotifier(sm, outbox, nil)
	if err := n.Deliver(context.Background(), "7", "Cảm ơn bạn đã quan tâm Unigrow! 😊"); err != nil {
		t.Fatalf("Deliver error = %v", err)
	}

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		got := readFrame(t, conn)
		if got.Type != msgScheduled || got.Content != "Cảm ơn bạn đã quan tâm Unigrow! 😊" {
			t.Fatalf("scheduled frame = %+v", got)
		}
	}

	msgs := outbox.all()
	if len(msgs) != 1 || msgs[0].UserID != 7 || !msgs[0].Delivered {
		t.Fatalf("outbox = %+v", msgs)
	}
}

func TestNotifierOfflineRecipient(t *testing.T) {
	outbox := &memOutbox{}
	n := NewNotifier(NewSessionManager(), outbox, nil)

	if err := n.Deliver(context.Background(), "8", "nhắc nhở"); err != nil {
		t.Fatalf("Deliver error = %v", err)
	}
	msgs := outbox.all()
	if len(msgs) != 1 || msgs[0].Delivered {
		t.Fatalf("outbox = %+v", msgs)
	}

	if err := n.Deliver(context.Background(), "rasa-sender", "hi"); err != nil {
		t.Fatalf("Deliver(non-numeric) error = %v", err)
	}
	if len(outbox.all()) != 1 {
		t.Fatal("non-numeric recipient should not be recorded")
	}
}

func TestNotifierStoreError(t *testing.T) {
	outbox := &memOutbox{err: errors.New("database is locked")}
	n := NewNotifier(NewSessionManager(), outbox, nil)

	if err := n.Deliver(context.Background(), "8", "hi"); err == nil {
		t.Fatal("expected store error to be returned")
	}
}

func TestCloseAllDisconnectsSessions(t *testing.T) {
	sm := NewSessionManager()
	srv := startServer(t, echoReplier{}, sm)
	conn := dial(t, srv, "user_id=9")
	waitForSessions(t, sm, 1)

	sm.CloseAll()
	if n := sm.Count(); n != 0 {
		t.Fatalf("Count() after CloseAll = %d", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
		t.Fatalf("close status = %v (err %v), want StatusGoingAway", status, err)
	}
}

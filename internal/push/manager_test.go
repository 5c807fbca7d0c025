package push

import (
	"strconv"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager()
	conn := &websocket.Conn{}

	sm.Register("7", "tab-1", conn)

	if active := sm.GetActive("7", "tab-1"); active != conn {
		t.Errorf("Expected connection %v, got %v", conn, active)
	}
	if n := sm.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager()
	conn := &websocket.Conn{}

	sm.Register("7", "tab-1", conn)
	sm.Unregister("7", "tab-1", conn)

	if active := sm.GetActive("7", "tab-1"); active != nil {
		t.Errorf("Expected nil connection, got %v", active)
	}
	if conns := sm.Connections("7"); len(conns) != 0 {
		t.Errorf("Connections() = %d, want 0", len(conns))
	}
}

func TestSessionManager_UnregisterStale(t *testing.T) {
	sm := NewSessionManager()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	sm.Register("7", "tab-1", conn1)
	sm.Register("7", "tab-2", conn2)

	sm.Unregister("7", "tab-1", conn1)
	// Unregistering with a connection that is not the current one is a no-op.
	sm.Unregister("7", "tab-2", conn1)

	if active := sm.GetActive("7", "tab-2"); active != conn2 {
		t.Errorf("Expected connection %v, got %v", conn2, active)
	}
	if conns := sm.Connections("7"); len(conns) != 1 {
		t.Errorf("Connections() = %d, want 1", len(conns))
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.Register("7", "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.GetActive("7", "tab-"+strconv.Itoa(i))
			sm.Connections("7")
		}
	}()

	wg.Wait()
	if n := sm.Count(); n != 1000 {
		t.Fatalf("Count() = %d, want 1000", n)
	}
}

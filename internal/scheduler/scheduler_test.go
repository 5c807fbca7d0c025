package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]int
	calls map[string]int
}

func newRecorder() *recorder {
	return &recorder{fail: map[string]int{}, calls: map[string]int{}}
}

func (r *recorder) send(_ context.Context, recipientID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[body]++
	if r.fail[body] > 0 {
		r.fail[body]--
		return errors.New("socket closed")
	}
	r.sent = append(r.sent, recipientID+":"+body)
	return nil
}

func (r *recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func newTestScheduler(cfg Config) (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := New(cfg, nil)
	s.now = clock.Now
	return s, clock
}

func TestScheduleSequenceOffsets(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{})

	msgs := s.ScheduleSequence("u1", []string{"a", "b", "c"}, 5*time.Second)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []time.Duration{0, 5 * time.Second, 10 * time.Second} {
		if got := msgs[i].FireAt.Sub(clock.Now()); got != want {
			t.Errorf("message %d offset = %v, want %v", i, got, want)
		}
		if msgs[i].ID == "" {
			t.Errorf("message %d has no ID", i)
		}
	}
	if len(s.PendingFor("u1")) != 3 || len(s.PendingFor("u2")) != 0 {
		t.Fatalf("unexpected pending: %+v", s.Pending())
	}
}

func TestDispatchDueSendsEachOnceAndEmptiesQueue(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{})
	rec := newRecorder()

	var callbacks int
	s.ScheduleMessage("u1", "first", 0, func() { callbacks++ })
	s.ScheduleMessage("u2", "second", 0, nil)

	s.dispatchDue(context.Background(), rec.send)
	s.dispatchDue(context.Background(), rec.send)

	got := rec.Sent()
	if len(got) != 2 || got[0] != "u1:first" || got[1] != "u2:second" {
		t.Fatalf("sent = %v", got)
	}
	if callbacks != 1 {
		t.Fatalf("onSent called %d times, want 1", callbacks)
	}
	if n := len(s.Pending()); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}

func TestDispatchOrderIsFireTimeThenInsertion(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{})
	rec := newRecorder()

	s.ScheduleMessage("u", "late", 3*time.Second, nil)
	s.ScheduleMessage("u", "early-1", time.Second, nil)
	s.ScheduleMessage("u", "early-2", time.Second, nil)
	s.ScheduleMessage("u", "future", time.Hour, nil)

	clock.Advance(5 * time.Second)
	s.dispatchDue(context.Background(), rec.send)

	want := []string{"u:early-1", "u:early-2", "u:late"}
	got := rec.Sent()
	if len(got) != len(want) {
		t.Fatalf("sent = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent = %v, want %v", got, want)
		}
	}
	if p := s.Pending(); len(p) != 1 || p[0].Body != "future" {
		t.Fatalf("pending = %+v", p)
	}
}

func TestFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{Policy: PolicyDrop})
	rec := newRecorder()
	rec.fail["bad"] = 1

	s.ScheduleMessage("u", "bad", 0, nil)
	s.ScheduleMessage("u", "good", 0, nil)
	s.dispatchDue(context.Background(), rec.send)

	if got := rec.Sent(); len(got) != 1 || got[0] != "u:good" {
		t.Fatalf("sent = %v", got)
	}
	if n := len(s.Pending()); n != 0 {
		t.Fatalf("drop policy left %d pending", n)
	}
}

func TestPanickingSendIsContained(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{Policy: PolicyDrop})

	var sent []string
	send := func(_ context.Context, _, body string) error {
		if body == "boom" {
			panic("nil conn")
		}
		sent = append(sent, body)
		return nil
	}
	s.ScheduleMessage("u", "boom", 0, nil)
	s.ScheduleMessage("u", "after", 0, nil)
	s.dispatchDue(context.Background(), send)

	if len(sent) != 1 || sent[0] != "after" {
		t.Fatalf("sent = %v", sent)
	}
}

func TestRetryPolicyBacksOffThenDrops(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{Policy: PolicyRetry, MaxAttempts: 3, RetryBackoff: 5 * time.Second})
	rec := newRecorder()
	rec.fail["flaky"] = 10

	s.ScheduleMessage("u", "flaky", 0, nil)

	s.dispatchDue(context.Background(), rec.send)
	p := s.Pending()
	if len(p) != 1 || p[0].Attempts != 1 {
		t.Fatalf("after first failure pending = %+v", p)
	}
	if got := p[0].FireAt.Sub(clock.Now()); got != 5*time.Second {
		t.Fatalf("first backoff = %v, want 5s", got)
	}

	clock.Advance(5 * time.Second)
	s.dispatchDue(context.Background(), rec.send)
	p = s.Pending()
	if len(p) != 1 || p[0].FireAt.Sub(clock.Now()) != 10*time.Second {
		t.Fatalf("after second failure pending = %+v", p)
	}

	clock.Advance(10 * time.Second)
	s.dispatchDue(context.Background(), rec.send)
	if n := len(s.Pending()); n != 0 {
		t.Fatalf("expected message dropped after max attempts, pending = %d", n)
	}
	if rec.calls["flaky"] != 3 {
		t.Fatalf("send attempts = %d, want 3", rec.calls["flaky"])
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{RetryBackoff: time.Second})
	rec := newRecorder()
	rec.fail["hi"] = 1

	done := false
	s.ScheduleMessage("u", "hi", 0, func() { done = true })
	s.dispatchDue(context.Background(), rec.send)
	clock.Advance(time.Second)
	s.dispatchDue(context.Background(), rec.send)

	if !done || len(rec.Sent()) != 1 {
		t.Fatalf("expected delivery on retry, sent = %v", rec.Sent())
	}
}

func TestScheduleNurtureUsesInterval(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{NurtureInterval: 10 * time.Second})

	msgs := s.ScheduleNurture("lead")
	if len(msgs) != 5 {
		t.Fatalf("expected 5 nurture messages, got %d", len(msgs))
	}
	if got := msgs[4].FireAt.Sub(clock.Now()); got != 40*time.Second {
		t.Fatalf("last nurture offset = %v, want 40s", got)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Tick: 10 * time.Millisecond}, nil)

	delivered := make(chan string, 4)
	send := func(_ context.Context, _, body string) error {
		delivered <- body
		return nil
	}

	s.ScheduleMessage("u", "now", 0, nil)
	s.ScheduleMessage("u", "much later", time.Hour, nil)
	s.Start(send)
	s.Start(send) // second call only warns

	select {
	case body := <-delivered:
		if body != "now" {
			t.Fatalf("delivered %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	s.Stop()
	s.Stop()

	if p := s.Pending(); len(p) != 1 || p[0].Body != "much later" {
		t.Fatalf("pending after stop = %+v", p)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"retry", "drop"} {
		if _, err := ParsePolicy(in); err != nil {
			t.Errorf("ParsePolicy(%q) error = %v", in, err)
		}
	}
	if _, err := ParsePolicy("forever"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

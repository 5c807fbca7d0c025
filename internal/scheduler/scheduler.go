// Package scheduler delivers delayed and recurring-time messages to users
// from a single background worker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unigrow/unigrow-bot/internal/reply"
)

// ErrInvalidTimeOfDay is returned for reminder times not in HH:MM form.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// SendFunc delivers one message. A returned error (or panic) counts as a
// failed attempt.
type SendFunc func(ctx context.Context, recipientID, body string) error

// Policy decides what happens to a message whose send failed.
type Policy string

const (
	// PolicyRetry re-queues with exponential backoff until MaxAttempts.
	PolicyRetry Policy = "retry"
	// PolicyDrop discards the message after the first failure.
	PolicyDrop Policy = "drop"
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRetry, PolicyDrop:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Config tunes the worker loop and failure handling.
type Config struct {
	Tick            time.Duration
	Policy          Policy
	MaxAttempts     int
	RetryBackoff    time.Duration
	NurtureInterval time.Duration
	// Location is used for daily reminder wall-clock times. Defaults to time.Local.
	Location *time.Location
}

// Message is a pending outbound message.
type Message struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	FireAt      time.Time `json:"fire_at"`
	Attempts    int       `json:"attempts"`

	seq    uint64
	onSent func()
}

// Scheduler owns the pending list. Sends happen outside the lock, one
// message at a time, in (FireAt, insertion) order.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []*Message
	seq     uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Zero config fields take the defaults.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyRetry
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.NurtureInterval <= 0 {
		cfg.NurtureInterval = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ScheduleMessage queues body for recipientID after delay. onSent, if not
// nil, runs after a successful send.
func (s *Scheduler) ScheduleMessage(recipientID, body string, delay time.Duration, onSent func()) Message {
	return s.scheduleAt(recipientID, body, s.now().Add(delay), onSent)
}

// ScheduleSequence queues bodies interval apart, the first one immediately.
func (s *Scheduler) ScheduleSequence(recipientID string, bodies []string, interval time.Duration) []Message {
	now := s.now()
	out := make([]Message, 0, len(bodies))
	for i, body := range bodies {
		out = append(out, s.scheduleAt(recipientID, body, now.Add(time.Duration(i)*interval), nil))
	}
	s.logger.Info("sequence scheduled", "recipient_id", recipientID, "count", len(bodies), "interval", interval)
	return out
}

// ScheduleNurture queues the Unigrow nurture sequence.
func (s *Scheduler) ScheduleNurture(recipientID string) []Message {
	return s.ScheduleSequence(recipientID, reply.NurtureSequence, s.cfg.NurtureInterval)
}

// ScheduleDailyReminder queues body for the next occurrence of timeOfDay
// (HH:MM) strictly after now. The reminder fires once.
func (s *Scheduler) ScheduleDailyReminder(recipientID, body, timeOfDay string) (Message, error) {
	next, err := nextOccurrence(timeOfDay, s.now(), s.cfg.Location)
	if err != nil {
		return Message{}, err
	}
	return s.scheduleAt(recipientID, body, next, nil), nil
}

func (s *Scheduler) scheduleAt(recipientID, body string, fireAt time.Time, onSent func()) Message {
	s.mu.Lock()
	s.seq++
	m := &Message{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Body:        body,
		FireAt:      fireAt,
		seq:         s.seq,
		onSent:      onSent,
	}
	s.pending = append(s.pending, m)
	s.mu.Unlock()

	s.logger.Debug("message scheduled", "recipient_id", recipientID, "message_id", m.ID, "fire_at", fireAt)
	return *m
}

// Pending returns a snapshot of every queued message in dispatch order.
func (s *Scheduler) Pending() []Message {
	return s.snapshot(func(*Message) bool { return true })
}

// PendingFor returns the queued messages of one recipient in dispatch order.
func (s *Scheduler) PendingFor(recipientID string) []Message {
	return s.snapshot(func(m *Message) bool { return m.RecipientID == recipientID })
}

func (s *Scheduler) snapshot(keep func(*Message) bool) []Message {
	s.mu.Lock()
	out := make([]Message, 0, len(s.pending))
	for _, m := range s.pending {
		if keep(m) {
			out = append(out, *m)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	return out
}

// Start launches the worker goroutine. Calling it while running only logs.
func (s *Scheduler) Start(send SendFunc) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		s.logger.Warn("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, send)
	s.logger.Info("scheduler started", "tick", s.cfg.Tick, "policy", string(s.cfg.Policy))
}

// Stop ends the worker after its current tick. Pending messages are kept.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.logger.Info("scheduler stopped", "pending", len(s.Pending()))
}

func (s *Scheduler) run(ctx context.Context, send SendFunc) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick in progress finishes its batch even if Stop is called.
			s.dispatchDue(context.WithoutCancel(ctx), send)
		}
	}
}

// dispatchDue removes every due message and sends them in order.
func (s *Scheduler) dispatchDue(ctx context.Context, send SendFunc) {
	now := s.now()

	s.mu.Lock()
	var due []*Message
	kept := s.pending[:0]
	for _, m := range s.pending {
		if !m.FireAt.After(now) {
			due = append(due, m)
		} else {
			kept = append(kept, m)
		}
	}
	// Clear the tail so removed messages can be collected.
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = nil
	}
	s.pending = kept
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	sort.Slice(due, func(i, j int) bool { return before(due[i], due[j]) })
	s.logger.Debug("dispatching due messages", "count", len(due))

	for _, m := range due {
		if err := safeSend(ctx, send, m); err != nil {
			s.handleFailure(m, err)
			continue
		}
		s.logger.Info("message sent", "recipient_id", m.RecipientID, "message_id", m.ID)
		if m.onSent != nil {
			s.runCallback(m)
		}
	}
}

func (s *Scheduler) handleFailure(m *Message, err error) {
	m.Attempts++
	if s.cfg.Policy == PolicyDrop || m.Attempts >= s.cfg.MaxAttempts {
		s.logger.Error("message dropped",
			"recipient_id", m.RecipientID,
			"message_id", m.ID,
			"attempts", m.Attempts,
			"error", err)
		return
	}

	delay := s.cfg.RetryBackoff * time.Duration(1<<(m.Attempts-1))
	m.FireAt = s.now().Add(delay)

	s.mu.Lock()
	s.pending = append(s.pending, m)
	s.mu.Unlock()

	s.logger.Warn("message send failed, will retry",
		"recipient_id", m.RecipientID,
		"message_id", m.ID,
		"attempt", m.Attempts,
		"retry_in", delay,
		"error", err)
}

func (s *Scheduler) runCallback(m *Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("onSent callback panicked", "message_id", m.ID, "panic", r)
		}
	}()
	m.onSent()
}

func safeSend(ctx context.Context, send SendFunc, m *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	return send(ctx, m.RecipientID, m.Body)
}

func before(a, b *Message) bool {
	if !a.FireAt.Equal(b.FireAt) {
		return a.FireAt.Before(b.FireAt)
	}
	return a.seq < b.seq
}

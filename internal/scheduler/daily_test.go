package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		tod  string
		want time.Time
	}{
		{name: "later today", tod: "18:15", want: time.Date(2024, 5, 1, 18, 15, 0, 0, time.UTC)},
		{name: "earlier rolls to tomorrow", tod: "09:00", want: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		{name: "exactly now rolls to tomorrow", tod: "12:30", want: time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC)},
		{name: "next minute", tod: "12:31", want: time.Date(2024, 5, 1, 12, 31, 0, 0, time.UTC)},
		{name: "midnight", tod: "00:00", want: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextOccurrence(tt.tod, now, time.UTC)
			if err != nil {
				t.Fatalf("nextOccurrence(%q) error = %v", tt.tod, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("nextOccurrence(%q) = %v, want %v", tt.tod, got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceProperty(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 29, 30, 31, 59} {
			tod := time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
			got, err := nextOccurrence(tod, now, time.UTC)
			if err != nil {
				t.Fatalf("nextOccurrence(%q) error = %v", tod, err)
			}
			today := time.Date(2024, 5, 1, h, m, 0, 0, time.UTC)
			want := today
			if !today.After(now) {
				want = today.Add(24 * time.Hour)
			}
			if !got.Equal(want) {
				t.Fatalf("nextOccurrence(%q) = %v, want %v", tod, got, want)
			}
		}
	}
}

func TestNextOccurrenceKeepsWallClockAcrossDST(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	// Clocks spring forward on 2026-03-08.
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, loc)

	got, err := nextOccurrence("09:00", now, loc)
	if err != nil {
		t.Fatalf("nextOccurrence error = %v", err)
	}
	want := time.Date(2026, 3, 8, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("nextOccurrence = %v, want %v", got, want)
	}
	today := time.Date(2026, 3, 7, 9, 0, 0, 0, loc)
	if d := got.Sub(today); d != 23*time.Hour {
		t.Fatalf("gap from today's occurrence = %v, want 23h", d)
	}
}

func TestScheduleDailyReminderInvalid(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(Config{})

	for _, tod := range []string{"", "25:00", "9h", "12:60", "noon"} {
		if _, err := s.ScheduleDailyReminder("u", "uống Unigrow", tod); !errors.Is(err, ErrInvalidTimeOfDay) {
			t.Errorf("ScheduleDailyReminder(%q) error = %v, want ErrInvalidTimeOfDay", tod, err)
		}
	}
	if n := len(s.Pending()); n != 0 {
		t.Fatalf("invalid reminders were queued: %d", n)
	}
}

func TestScheduleDailyReminderQueues(t *testing.T) {
	t.Parallel()
	s, clock := newTestScheduler(Config{})

	m, err := s.ScheduleDailyReminder("u", "Đến giờ uống Unigrow rồi!", "09:00")
	if err != nil {
		t.Fatalf("ScheduleDailyReminder error = %v", err)
	}
	want := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	if !m.FireAt.Equal(want) {
		t.Fatalf("FireAt = %v, want %v (now %v)", m.FireAt, want, clock.Now())
	}
}

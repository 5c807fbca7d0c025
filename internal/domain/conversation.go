package domain

import (
	"strconv"
	"time"
)

// ConversationState is the slot set kept for one conversation partner.
type ConversationState struct {
	UserID       string
	Age          *int
	Height       string
	TargetHeight string
	UpdatedAt    time.Time
}

// AgeString returns the age slot formatted for templates, or "" when unset.
func (s *ConversationState) AgeString() string {
	if s == nil || s.Age == nil {
		return ""
	}
	return strconv.Itoa(*s.Age)
}

// IsEmpty reports whether no slot has been filled yet.
func (s *ConversationState) IsEmpty() bool {
	return s == nil || (s.Age == nil && s.Height == "" && s.TargetHeight == "")
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Age != nil {
		age := *s.Age
		c.Age = &age
	}
	return &c
}

// Package domain contains core domain types for the Unigrow chatbot.
package domain

import (
	"time"
)

// User is a registered chatbot account.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// Analytics holds per-user aggregate counters.
type Analytics struct {
	UserID              int64     `json:"user_id"`
	TotalMessages       int       `json:"total_messages"`
	AverageResponseTime float64   `json:"average_response_time"`
	LastActive          time.Time `json:"last_active"`
}

// RecordTurn folds one chat turn into the counters. The average is a running
// mean of engine response time in seconds.
func (a *Analytics) RecordTurn(at time.Time, responseTime time.Duration) {
	n := float64(a.TotalMessages)
	a.AverageResponseTime = (a.AverageResponseTime*n + responseTime.Seconds()) / (n + 1)
	a.TotalMessages++
	a.LastActive = at
}

// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/unigrow/unigrow-bot/internal/domain"
)

// ErrDuplicateUser is returned by CreateUser when the username or email is taken.
var ErrDuplicateUser = errors.New("username or email already exists")

// Repository defines the interface for persisting accounts, chat logs and
// conversation slots. Lookups return nil, nil when the row does not exist.
type Repository interface {
	// CreateUser inserts a user and returns the assigned ID.
	CreateUser(ctx context.Context, user *domain.User) (int64, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// AppendExchange stores one chat turn.
	AppendExchange(ctx context.Context, exchange *domain.ChatExchange) error

	// ListExchanges returns the most recent limit exchanges, oldest first.
	ListExchanges(ctx context.Context, userID int64, limit int) ([]domain.ChatExchange, error)

	// GetAnalytics retrieves the counters of a user.
	GetAnalytics(ctx context.Context, userID int64) (*domain.Analytics, error)

	// RecordTurn folds one turn into the user's analytics, creating the row if needed.
	RecordTurn(ctx context.Context, userID int64, at time.Time, responseTime time.Duration) error

	// GetConversationState retrieves the slots for a conversation partner.
	GetConversationState(ctx context.Context, userID string) (*domain.ConversationState, error)

	// SaveConversationState creates or replaces the slots for a conversation partner.
	SaveConversationState(ctx context.Context, state *domain.ConversationState) error

	// RecordOutbound stores a scheduler-initiated message.
	RecordOutbound(ctx context.Context, msg *domain.OutboundMessage) error

	// ListOutbound returns the most recent limit outbound messages, oldest first.
	ListOutbound(ctx context.Context, userID int64, limit int) ([]domain.OutboundMessage, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

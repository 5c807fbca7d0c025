// Package chat turns a user message into a persisted bot reply.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/unigrow/unigrow-bot/internal/dialogue"
	"github.com/unigrow/unigrow-bot/internal/domain"
)

// FallbackReply is sent when the engine fails or says nothing.
const FallbackReply = "Xin lỗi, tôi không hiểu."

// ErrEngineUnavailable is returned when no dialogue engine is configured.
var ErrEngineUnavailable = errors.New("dialogue engine unavailable")

// Store is the persistence the service needs. store.Repository satisfies it.
type Store interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	AppendExchange(ctx context.Context, exchange *domain.ChatExchange) error
	RecordTurn(ctx context.Context, userID int64, at time.Time, responseTime time.Duration) error
}

// Turn is the outcome of one Reply call.
type Turn struct {
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Image       string    `json:"image,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Service forwards messages to the dialogue engine and records the exchange.
type Service struct {
	engine dialogue.Engine
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. A nil engine makes every Reply fail with
// ErrEngineUnavailable.
func NewService(engine dialogue.Engine, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, store: store, logger: logger, now: time.Now}
}

// Engine returns the configured dialogue engine.
func (s *Service) Engine() dialogue.Engine {
	return s.engine
}

// Reply sends text to the engine as userID and returns the first non-empty
// response. Engine failures degrade to FallbackReply; persistence failures
// are logged only.
func (s *Service) Reply(ctx context.Context, userID int64, text string) (Turn, error) {
	if s.engine == nil {
		return Turn{}, ErrEngineUnavailable
	}

	start := s.now()
	responses, err := s.engine.Handle(ctx, strconv.FormatInt(userID, 10), text)
	elapsed := s.now().Sub(start)

	turn := Turn{UserMessage: text, BotResponse: FallbackReply, Timestamp: s.now()}
	if err != nil {
		s.logger.Warn("dialogue engine failed", "user_id", userID, "error", err)
	} else if botText, ok := dialogue.FirstText(responses); ok {
		turn.BotResponse = botText
		for _, r := range responses {
			if r.Text == botText {
				turn.Image = r.Image
				break
			}
		}
	} else {
		s.logger.Info("dialogue engine returned no text", "user_id", userID, "responses", len(responses))
	}

	s.persist(ctx, userID, turn, elapsed)
	return turn, nil
}

func (s *Service) persist(ctx context.Context, userID int64, turn Turn, elapsed time.Duration) {
	if s.store == nil {
		return
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to look up user", "user_id", userID, "error", err)
		return
	}
	if user == nil {
		s.logger.Debug("skipping persistence for unknown user", "user_id", userID)
		return
	}

	exchange := &domain.ChatExchange{
		UserID:      userID,
		UserMessage: turn.UserMessage,
		BotResponse: turn.BotResponse,
		Timestamp:   turn.Timestamp,
	}
	if err := s.store.AppendExchange(ctx, exchange); err != nil {
		s.logger.Error("failed to save chat exchange", "user_id", userID, "error", err)
	}
	if err := s.store.RecordTurn(ctx, userID, turn.Timestamp, elapsed); err != nil {
		s.logger.Error("failed to update analytics", "user_id", userID, "error", err)
	}
}

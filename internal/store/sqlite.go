package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/unigrow/unigrow-bot/internal/domain"
	"github.com/unigrow/unigrow-bot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		user_message TEXT NOT NULL,
		bot_response TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, id);

	CREATE TABLE IF NOT EXISTS analytics (
		user_id INTEGER PRIMARY KEY REFERENCES users(id),
		total_messages INTEGER NOT NULL DEFAULT 0,
		average_response_time REAL NOT NULL DEFAULT 0,
		last_active INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_slots (
		user_id TEXT PRIMARY KEY,
		age INTEGER,
		height TEXT NOT NULL DEFAULT '',
		target_height TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outbound_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_outbound_user ON outbound_messages(user_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a user and returns the assigned ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) (int64, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `INSERT INTO users (username, password_hash, email, created_at) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.Email, user.CreatedAt.Unix())
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get user id: %w", err)
	}
	user.ID = id
	return id, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT id, username, password_hash, email, created_at FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT id, username, password_hash, email, created_at FROM users WHERE username = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var createdAt int64

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// AppendExchange stores one chat turn. Busy errors are retried with backoff.
func (s *SQLiteStore) AppendExchange(ctx context.Context, exchange *domain.ChatExchange) error {
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = time.Now()
	}

	query := `INSERT INTO messages (user_id, user_message, bot_response, timestamp) VALUES (?, ?, ?, ?)`
	return shared.RetryOnConflict(ctx, s.retry, "insert message", func() error {
		result, err := s.db.ExecContext(ctx, query,
			exchange.UserID, exchange.UserMessage, exchange.BotResponse, exchange.Timestamp.Unix())
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		exchange.ID = id
		return nil
	})
}

// ListExchanges returns the most recent limit exchanges, oldest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, userID int64, limit int) ([]domain.ChatExchange, error) {
	query := `
		SELECT id, user_id, user_message, bot_response, timestamp FROM (
			SELECT id, user_id, user_message, bot_response, timestamp
			FROM messages WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	exchanges := []domain.ChatExchange{}
	for rows.Next() {
		var ex domain.ChatExchange
		var ts int64
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.UserMessage, &ex.BotResponse, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		ex.Timestamp = time.Unix(ts, 0)
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return exchanges, nil
}

// GetAnalytics retrieves the counters of a user.
func (s *SQLiteStore) GetAnalytics(ctx context.Context, userID int64) (*domain.Analytics, error) {
	return getAnalytics(ctx, s.db, userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAnalytics(ctx context.Context, q queryRower, userID int64) (*domain.Analytics, error) {
	query := `SELECT user_id, total_messages, average_response_time, last_active FROM analytics WHERE user_id = ?`

	var a domain.Analytics
	var lastActive int64
	err := q.QueryRowContext(ctx, query, userID).Scan(&a.UserID, &a.TotalMessages, &a.AverageResponseTime, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan analytics row: %w", err)
	}
	a.LastActive = time.Unix(lastActive, 0)
	return &a, nil
}

// RecordTurn folds one turn into the user's analytics inside a transaction.
func (s *SQLiteStore) RecordTurn(ctx context.Context, userID int64, at time.Time, responseTime time.Duration) error {
	return shared.RetryOnConflict(ctx, s.retry, "record analytics", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		a, err := getAnalytics(ctx, tx, userID)
		if err != nil {
			return err
		}
		if a == nil {
			a = &domain.Analytics{UserID: userID}
		}
		a.RecordTurn(at, responseTime)

		query := `
		INSERT INTO analytics (user_id, total_messages, average_response_time, last_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_messages = excluded.total_messages,
			average_response_time = excluded.average_response_time,
			last_active = excluded.last_active`
		if _, err := tx.ExecContext(ctx, query, userID, a.TotalMessages, a.AverageResponseTime, a.LastActive.Unix()); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetConversationState retrieves the slots for a conversation partner.
func (s *SQLiteStore) GetConversationState(ctx context.Context, userID string) (*domain.ConversationState, error) {
	query := `SELECT user_id, age, height, target_height, updated_at FROM conversation_slots WHERE user_id = ?`

	var state domain.ConversationState
	var age sql.NullInt64
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID, &age, &state.Height, &state.TargetHeight, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation slots: %w", err)
	}

	if age.Valid {
		v := int(age.Int64)
		state.Age = &v
	}
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return &state, nil
}

// SaveConversationState creates or replaces the slots for a conversation partner.
func (s *SQLiteStore) SaveConversationState(ctx context.Context, state *domain.ConversationState) error {
	query := `
	INSERT INTO conversation_slots (user_id, age, height, target_height, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		age = excluded.age,
		height = excluded.height,
		target_height = excluded.target_height,
		updated_at = excluded.updated_at`

	var age interface{}
	if state.Age != nil {
		age = *state.Age
	}

	return shared.RetryOnConflict(ctx, s.retry, "upsert conversation slots", func() error {
		_, err := s.db.ExecContext(ctx, query,
			state.UserID, age, state.Height, state.TargetHeight, state.UpdatedAt.Unix())
		return err
	})
}

// RecordOutbound stores a scheduler-initiated message.
func (s *SQLiteStore) RecordOutbound(ctx context.Context, msg *domain.OutboundMessage) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	query := `INSERT INTO outbound_messages (user_id, body, sent_at, delivered) VALUES (?, ?, ?, ?)`
	return shared.RetryOnConflict(ctx, s.retry, "insert outbound message", func() error {
		result, err := s.db.ExecContext(ctx, query, msg.UserID, msg.Body, msg.SentAt.Unix(), msg.Delivered)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		msg.ID = id
		return nil
	})
}

// ListOutbound returns the most recent limit outbound messages, oldest first.
func (s *SQLiteStore) ListOutbound(ctx context.Context, userID int64, limit int) ([]domain.OutboundMessage, error) {
	query := `
		SELECT id, user_id, body, sent_at, delivered FROM (
			SELECT id, user_id, body, sent_at, delivered
			FROM outbound_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbound messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close outbound rows", "error", closeErr)
		}
	}()

	msgs := []domain.OutboundMessage{}
	for rows.Next() {
		var m domain.OutboundMessage
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Body, &sentAt, &m.Delivered); err != nil {
			return nil, fmt.Errorf("scan outbound row: %w", err)
		}
		m.SentAt = time.Unix(sentAt, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbound messages: %w", err)
	}

	return msgs, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the persistence operations for the bot credential and the
// recipient registry. Every mutation is durable before the call returns.
type Store interface {
	// Ping checks the store connection.
	Ping(ctx context.Context) error

	// Token returns the stored bot token, or "" if none was set.
	Token(ctx context.Context) (string, error)

	// SetToken stores the bot token.
	SetToken(ctx context.Context, token string) error

	// Clients returns the recipient registry. The result is never nil.
	Clients(ctx context.Context) (map[int64]string, error)

	// AddClients merges the given chat id to display name pairs into the
	// registry. Existing ids are overwritten.
	AddClients(ctx context.Context, clients map[int64]string) error
}

// client mirrors a row of the clients table.
type client struct {
	ChatID    int64     `db:"chat_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// sqlxStore implements Store on top of sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New creates a Store backed by the given connection.
func New(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) Token(ctx context.Context) (string, error) {
	var token sql.NullString
	err := s.db.GetContext(ctx, &token, `SELECT token FROM bot_config WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token.String, nil
}

func (s *sqlxStore) SetToken(ctx context.Context, token string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_config (id, token, created_at, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token, now, now)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	s.logger.DebugContext(ctx, "Token stored")
	return nil
}

func (s *sqlxStore) Clients(ctx context.Context) (map[int64]string, error) {
	var rows []client
	if err := s.db.SelectContext(ctx, &rows, `SELECT chat_id, name, created_at, updated_at FROM clients`); err != nil {
		return nil, fmt.Errorf("failed to read clients: %w", err)
	}

	clients := make(map[int64]string, len(rows))
	for _, row := range rows {
		clients[row.ChatID] = row.Name
	}
	return clients, nil
}

func (s *sqlxStore) AddClients(ctx context.Context, clients map[int64]string) error {
	if len(clients) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.ErrorContext(ctx, "Failed to roll back client transaction", "error", err)
		}
	}()

	now := time.Now().UTC()
	for chatID, name := range clients {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (chat_id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (chat_id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
			chatID, name, now, now)
		if err != nil {
			return fmt.Errorf("failed to store client %d: %w", chatID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clients: %w", err)
	}

	s.logger.DebugContext(ctx, "Clients stored", "count", len(clients))
	return nil
}

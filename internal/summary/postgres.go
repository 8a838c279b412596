package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation summaries in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSummarySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSummarySchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS conversation_summaries (
		conversation_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL,
		message_count_at_last_summary INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init summary schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, conversationID string) (ConversationSummary, error) {
	var sum ConversationSummary
	err := s.pool.QueryRow(ctx,
		`SELECT conversation_id, summary, message_count_at_last_summary
		 FROM conversation_summaries WHERE conversation_id=$1`,
		conversationID,
	).Scan(&sum.ConversationID, &sum.Summary, &sum.MessageCountAtLastSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationSummary{}, ErrNotFound
	}
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("query summary: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sum ConversationSummary) error {
	// Single-statement upsert keeps summary text and count atomic.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_summaries (conversation_id, summary, message_count_at_last_summary, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (conversation_id)
		 DO UPDATE SET summary=EXCLUDED.summary,
		               message_count_at_last_summary=EXCLUDED.message_count_at_last_summary,
		               updated_at=now()`,
		sum.ConversationID, sum.Summary, sum.MessageCountAtLastSummary,
	)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_summaries WHERE conversation_id=$1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

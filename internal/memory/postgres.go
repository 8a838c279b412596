package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists long-term memories in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initMemorySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initMemorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			importance INT NOT NULL DEFAULT 3,
			source_conversation_id TEXT NOT NULL DEFAULT '',
			source_message_id BIGINT NOT NULL DEFAULT 0,
			last_used_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_owner_rank ON memories (owner_id, importance DESC, last_used_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_owner_created ON memories (owner_id, created_at, id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init memory schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, m Memory) (Memory, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastUsedAt.IsZero() {
		m.LastUsedAt = now
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (id, owner_id, content, importance, source_conversation_id, source_message_id, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.OwnerID, m.Content, m.Importance, m.SourceConversationID, m.SourceMessageID, m.LastUsedAt, m.CreatedAt,
	)
	if err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Update(ctx context.Context, m Memory) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET content=$2, importance=$3, source_conversation_id=$4, source_message_id=$5, last_used_at=$6
		 WHERE id=$1`,
		m.ID, m.Content, m.Importance, m.SourceConversationID, m.SourceMessageID, m.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemoryNotFound
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]Memory, error) {
	// Creation order keeps first-match merge resolution deterministic.
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, content, importance, source_conversation_id, source_message_id, last_used_at, created_at
		 FROM memories WHERE owner_id=$1 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *PostgresStore) TopByImportance(ctx context.Context, ownerID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, content, importance, source_conversation_id, source_message_id, last_used_at, created_at
		 FROM memories WHERE owner_id=$1 ORDER BY importance DESC, last_used_at DESC LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *PostgresStore) TouchLastUsed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE memories SET last_used_at=$2 WHERE id = ANY($1)`,
		ids, at,
	)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

func scanMemories(rows pgx.Rows) ([]Memory, error) {
	var items []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Content, &m.Importance, &m.SourceConversationID, &m.SourceMessageID, &m.LastUsedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

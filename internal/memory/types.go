package memory

import (
	"context"
	"errors"
	"time"
)

var ErrMemoryNotFound = errors.New("memory not found")

const (
	// DefaultImportance is assigned when the extraction result omits the
	// importance field or gives it a non-numeric value.
	DefaultImportance = 3
	MinImportance     = 1
	MaxImportance     = 5
)

// Memory is one durable, deduplicated fact about an owner. Importance only
// ever moves up on re-observation; rows are never deleted by this subsystem.
type Memory struct {
	ID                   string    `json:"id"`
	OwnerID              string    `json:"owner_id"`
	Content              string    `json:"content"`
	Importance           int       `json:"importance"`
	SourceConversationID string    `json:"source_conversation_id,omitempty"`
	SourceMessageID      int64     `json:"source_message_id,omitempty"`
	LastUsedAt           time.Time `json:"last_used_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// Store persists long-term memories. Near-duplicate avoidance is enforced by
// the consolidator, not by storage uniqueness, because similarity is
// approximate.
type Store interface {
	Insert(ctx context.Context, m Memory) (Memory, error)
	Update(ctx context.Context, m Memory) error
	// ListByOwner returns the owner's full memory set in creation order. The
	// order must be stable because merge resolution is first-match.
	ListByOwner(ctx context.Context, ownerID string) ([]Memory, error)
	// TopByImportance returns up to limit memories ordered by importance
	// descending, then last use descending.
	TopByImportance(ctx context.Context, ownerID string, limit int) ([]Memory, error)
	// TouchLastUsed records that the given memories were served into a prompt.
	TouchLastUsed(ctx context.Context, ids []string, at time.Time) error
	Close() error
}

// ClampImportance forces a raw extraction value into the valid range.
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

package summary

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("summary not found")

// ConversationSummary is the single compressed representation of one
// conversation. MessageCountAtLastSummary is the total message count at the
// time Summary was computed; the pair is always replaced together.
type ConversationSummary struct {
	ConversationID            string `json:"conversation_id"`
	Summary                   string `json:"summary"`
	MessageCountAtLastSummary int    `json:"message_count_at_last_summary"`
}

// Store persists at most one summary per conversation.
type Store interface {
	Get(ctx context.Context, conversationID string) (ConversationSummary, error)
	// Upsert replaces summary text and message count atomically.
	Upsert(ctx context.Context, s ConversationSummary) error
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

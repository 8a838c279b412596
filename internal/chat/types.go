package chat

import (
	"context"
	"errors"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation groups the messages of one chat thread for one owner.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one immutable conversational turn. The sequential ID orders
// messages within a conversation and doubles as the summarizer's progress
// cursor; rows are append-only and never mutated.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TurnPair is the user message and assistant reply produced by one turn.
type TurnPair struct {
	User      Message `json:"user"`
	Assistant Message `json:"assistant"`
}

// Store persists conversations and their append-only message logs.
type Store interface {
	CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
	Conversation(ctx context.Context, id string) (Conversation, error)
	Conversations(ctx context.Context, ownerID string) ([]Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	// DeleteConversation removes the conversation and its messages. Summary
	// cleanup is the caller's concern; long-term memories are never deleted.
	DeleteConversation(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// RecentMessages returns the newest messages in chronological order.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// AllMessages returns the full log in chronological order.
	AllMessages(ctx context.Context, conversationID string) ([]Message, error)
	MessageCount(ctx context.Context, conversationID string) (int, error)

	Close() error
}

package summary

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process summary store for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]ConversationSummary
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{summaries: make(map[string]ConversationSummary)}
}

func (s *InMemoryStore) Get(_ context.Context, conversationID string) (ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[conversationID]
	if !ok {
		return ConversationSummary{}, ErrNotFound
	}
	return sum, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, sum ConversationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.ConversationID] = sum
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, conversationID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

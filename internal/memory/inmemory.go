package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	byOwner map[string][]Memory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byOwner: make(map[string][]Memory)}
}

func (s *InMemoryStore) Insert(_ context.Context, m Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.byOwner[m.OwnerID] = append(s.byOwner[m.OwnerID], m)
	return m, nil
}

func (s *InMemoryStore) Update(_ context.Context, m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.byOwner[m.OwnerID]
	for i := range arr {
		if arr[i].ID == m.ID {
			arr[i] = m
			return nil
		}
	}
	return ErrMemoryNotFound
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID string) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.byOwner[ownerID]
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]Memory, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *InMemoryStore) TopByImportance(_ context.Context, ownerID string, limit int) ([]Memory, error) {
	s.mu.RLock()
	arr := s.byOwner[ownerID]
	out := make([]Memory, len(arr))
	copy(out, arr)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].LastUsedAt.After(out[j].LastUsedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *InMemoryStore) TouchLastUsed(_ context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, arr := range s.byOwner {
		for i := range arr {
			if _, ok := want[arr[i].ID]; ok {
				arr[i].LastUsedAt = at
			}
		}
		s.byOwner[owner] = arr
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

package database

import (
	"context"
	"sort"
	"sync"

	"relayq/internal/models"
)

// MemoryStore is an in-memory queue store with the same semantics as
// the SQLite Store. It backs --ephemeral runs and tests; records do
// not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*models.QueuedMessage
	seq   map[string]int64
	next  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*models.QueuedMessage),
		seq:   make(map[string]int64),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Put(ctx context.Context, msg *models.QueuedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[msg.ID]; !exists {
		s.next++
		s.seq[msg.ID] = s.next
	}

	copied := *msg
	s.items[msg.ID] = &copied
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) QueryUnsynced(ctx context.Context) ([]*models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(m *models.QueuedMessage) bool { return !m.Synced }), nil
}

func (s *MemoryStore) QueryByStatus(ctx context.Context, status models.MessageStatus) ([]*models.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(m *models.QueuedMessage) bool { return m.Status == status }), nil
}

func (s *MemoryStore) CountUnsynced(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.items {
		if !m.Synced {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountUnsyncedByStatus(ctx context.Context, status models.MessageStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.items {
		if !m.Synced && m.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*models.QueuedMessage)
	s.seq = make(map[string]int64)
	return nil
}

func (s *MemoryStore) DeleteSynced(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, m := range s.items {
		if m.Synced {
			delete(s.items, id)
			delete(s.seq, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) CleanupOldSynced(ctx context.Context, retentionDays int) error {
	// Ephemeral stores hold nothing long enough for retention to matter.
	return nil
}

// collect returns matching records ordered by created_at with
// insertion-order tiebreak, matching the SQLite rowid ordering.
func (s *MemoryStore) collect(match func(*models.QueuedMessage) bool) []*models.QueuedMessage {
	var out []*models.QueuedMessage
	for _, m := range s.items {
		if match(m) {
			copied := *m
			out = append(out, &copied)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out
}

package lock

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It exists for tests and for the
// one-shot CLI path; it provides the same CAS semantics as the durable
// backends so the Mutex cannot tell them apart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

// Get returns the current item, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, key string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// Put conditionally writes the item under the store mutex, matching the
// atomicity the durable backends get from conditional writes.
func (s *MemoryStore) Put(ctx context.Context, item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[item.Key]
	if !exists {
		if item.Version != 0 {
			return Item{}, ErrConflict
		}
	} else if current.Version != item.Version {
		return Item{}, ErrConflict
	}

	stored := Item{
		Key:     item.Key,
		Value:   append([]byte(nil), item.Value...),
		Version: item.Version + 1,
	}
	s.items[item.Key] = stored
	return stored, nil
}

// Delete removes the key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in memory for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// PutSnapshot records the body under the standard key and returns a
// mem:// URI.
func (s *MemoryStore) PutSnapshot(_ context.Context, productID string, fetchedAt time.Time, body []byte) (string, error) {
	if productID == "" {
		return "", fmt.Errorf("product id is required")
	}
	key := objectKey(productID, fetchedAt)
	data := make([]byte, len(body))
	copy(data, body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return "mem://" + key, nil
}

// Get returns the stored body for a key, if present.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	return data, ok
}

// Len reports how many snapshots are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

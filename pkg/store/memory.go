package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/brightchain/brightchain/pkg/checksum"
)

// MemoryStore keeps blocks in process memory. Used by tests and as a
// cache tier; contents are lost on Close.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, pool string, id checksum.Checksum, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	s.mu.Lock()
	s.data[string(key(pool, id))] = owned
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, pool string, id checksum.Checksum) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.data[string(key(pool, id))]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s in pool %q", ErrNotFound, id, pool)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Has(ctx context.Context, pool string, id checksum.Checksum) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.data[string(key(pool, id))]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, pool string, id checksum.Checksum) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, string(key(pool, id)))
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored blocks across all pools.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

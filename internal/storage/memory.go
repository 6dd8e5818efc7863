package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a BlobStore held in process memory. Fail makes subsequent
// calls return ErrUnavailable, for exercising degraded paths.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	fail   error
	writes int
}

var _ BlobStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.fail)
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, s.fail)
	}
	s.data[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, s.fail)
	}
	delete(s.data, key)
	s.writes++
	return nil
}

// Fail sets the error returned by every call; nil restores normal operation.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Writes counts successful Put and Delete calls.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Package memory provides an in-process storage.Storage.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/cheese-kart/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps values in a map. Stored slices are copied on the way in and
// out.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

// Save stores a copy of value under key.
func (s *Storage) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Load returns the value stored under key or storage.ErrNotFound.
func (s *Storage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Delete removes key. Missing keys are ignored.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

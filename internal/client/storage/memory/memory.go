// Package memory implements the ephemeral session slot. Values live in
// process memory and are gone when the agent exits, which is exactly the
// lifetime a non-"remember me" login wants.
package memory

import (
	"context"
	"sync"

	"github.com/portalkeeper/portalkeeper/internal/client/storage"
)

// Storage is an in-memory key/value store safe for concurrent use.
type Storage struct {
	values map[string]string
	closed bool
	mu     sync.RWMutex
}

// New creates an empty ephemeral store.
func New() *Storage {
	return &Storage{values: make(map[string]string)}
}

// Get returns the stored value or storage.ErrKeyNotFound
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", storage.ErrStorageClosed
	}

	value, ok := s.values[key]
	if !ok {
		return "", storage.ErrKeyNotFound
	}
	return value, nil
}

// Set stores the value under key
func (s *Storage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}

	s.values[key] = value
	return nil
}

// Delete removes the key; missing keys are not an error
func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}

	delete(s.values, key)
	return nil
}

// Close drops all values
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = nil
	s.closed = true
	return nil
}

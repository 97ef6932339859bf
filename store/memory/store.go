// Package memory is an in-memory flag store for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/runner"
	"github.com/xraph/runner/store"
)

var _ store.FlagStore = (*Store)(nil)

// Store is a fully in-memory implementation of store.FlagStore.
// Safe for concurrent access. Values are lost on Close.
type Store struct {
	mu     sync.RWMutex
	flags  map[string]bool
	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{flags: make(map[string]bool)}
}

// GetFlag implements store.FlagStore.
func (s *Store) GetFlag(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, runner.ErrStoreClosed
	}
	v, ok := s.flags[key]
	if !ok {
		return false, runner.ErrFlagNotFound
	}
	return v, nil
}

// SetFlag implements store.FlagStore.
func (s *Store) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return runner.ErrStoreClosed
	}
	s.flags[key] = value
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return runner.ErrStoreClosed
	}
	return nil
}

// Close drops all flags.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.flags = nil
	return nil
}

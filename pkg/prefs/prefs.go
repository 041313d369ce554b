// Package prefs persists small user preferences, such as the selected theme,
// across sessions.
package prefs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Store is a string key-value store
type Store interface {
	// Get returns the value and whether the key was present
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// Open returns a pebble-backed store at path, or an in-memory one when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenPebble(path)
}

// PebbleStore keeps preferences in a local pebble database
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database at path
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func prefKey(key string) []byte {
	return []byte("pref:" + key)
}

// Get reads a preference
func (s *PebbleStore) Get(key string) (string, bool, error) {
	value, closer, err := s.db.Get(prefKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	out := string(value)
	if err := closer.Close(); err != nil {
		return "", false, err
	}
	return out, true, nil
}

// Set writes a preference synchronously
func (s *PebbleStore) Set(key, value string) error {
	if err := s.db.Set(prefKey(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Close closes the database
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get reads a preference
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set writes a preference
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

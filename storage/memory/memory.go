// Package memory provides a thread-safe in-memory implementation of
// storage.Store. Suitable for testing, demos, and single-process use cases.
package memory

import (
	"sync"

	"github.com/avikhandakar-dev/vibe/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
// The identifier is lost on process exit.
type Store struct {
	mu  sync.RWMutex
	id  string
	set bool
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load() (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set, nil
}

func (s *Store) Save(id string) error {
	s.mu.Lock()
	s.id = id
	s.set = true
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	s.id = ""
	s.set = false
	s.mu.Unlock()
	return nil
}

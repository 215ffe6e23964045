// Package storage provides the durable replica of the client's session
// identifier. The reactive in-memory copy lives in the session package; a
// Store keeps the value across process restarts.
package storage

// Store persists a single session identifier.
type Store interface {
	// Load returns the persisted identifier. ok is false when nothing is
	// stored.
	Load() (id string, ok bool, err error)
	// Save persists id, replacing any previous value.
	Save(id string) error
	// Clear removes the persisted identifier. Clearing an empty store is
	// not an error.
	Clear() error
}

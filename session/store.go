// Package session establishes and maintains the client's session identity:
// a reactive store for the session identifier with a durable replica, a
// bridge to the external identity provider, and a verifier that reconciles
// identity state, persisted identifier, and backend into one consistent
// session.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/avikhandakar-dev/vibe/internal/diag"
	"github.com/avikhandakar-dev/vibe/internal/watch"
	"github.com/avikhandakar-dev/vibe/storage"
)

// Resolution describes what the store currently knows about the session
// identifier.
type Resolution int

const (
	// Unresolved means the identifier has not been determined yet.
	Unresolved Resolution = iota
	// Absent means the identifier is known to not exist.
	Absent
	// Present means a concrete identifier is held.
	Present
)

type snapshot struct {
	res Resolution
	id  string
}

// Store is the single source of truth for the session identifier. It keeps
// a reactive in-memory value and a durable replica in a storage.Store, and
// lets consumers block until the identifier resolves.
type Store struct {
	durable storage.Store
	logger  *slog.Logger

	mu    sync.Mutex // serializes writes so both replicas move together
	value *watch.Value[snapshot]
}

// NewStore creates a Store over the given durable replica. The reactive
// value starts Unresolved; the verifier resolves it on its first cycle.
func NewStore(durable storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		durable: durable,
		logger:  logger,
		value:   watch.NewValue(snapshot{res: Unresolved}),
	}
}

// Get returns the current identifier and its resolution. The identifier is
// empty unless the resolution is Present.
func (s *Store) Get() (string, Resolution) {
	snap := s.value.Get()
	return snap.id, snap.res
}

// Set commits id as the current session identifier, writing the durable
// replica and the reactive value together. The identifier is also tagged
// onto the diagnostic context for error reports.
func (s *Store) Set(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.durable.Save(id)
	if err != nil {
		s.logger.Error("persisting session identifier", slog.String("error", err.Error()))
	}
	// The reactive value is updated even when persistence fails; the next
	// reconcile cycle re-reads the durable replica and converges.
	s.value.Set(snapshot{res: Present, id: id})
	diag.SetProperty("sessionId", id)
	return err
}

// Clear records that no session exists, clearing both replicas.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.durable.Clear()
	if err != nil {
		s.logger.Error("clearing session identifier", slog.String("error", err.Error()))
	}
	s.value.Set(snapshot{res: Absent})
	return err
}

// Persisted reads the durable replica directly. The verifier uses this at
// the start of each reconcile cycle rather than trusting the reactive copy.
func (s *Store) Persisted() (string, bool, error) {
	return s.durable.Load()
}

// Subscribe registers fn to run after every store write. The returned
// cancel function removes the subscription.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	return s.value.Subscribe(func(snapshot) { fn() })
}

// WaitFor blocks until the identifier resolves to present or absent. The
// tag names the caller in diagnostics. No intrinsic timeout; bound the wait
// through ctx.
func (s *Store) WaitFor(ctx context.Context, tag string) (id string, present bool, err error) {
	s.logger.Debug("waiting for session resolution", slog.String("waiter", tag))
	snap, err := s.value.Wait(ctx, func(v snapshot) bool { return v.res != Unresolved })
	if err != nil {
		return "", false, err
	}
	return snap.id, snap.res == Present, nil
}

// WaitForID blocks until a concrete identifier is present and returns it.
// Absence is treated as transient: the verifier creates a session on its
// next cycle, so waiters hold on rather than failing.
func (s *Store) WaitForID(ctx context.Context, tag string) (string, error) {
	s.logger.Debug("waiting for session identifier", slog.String("waiter", tag))
	snap, err := s.value.Wait(ctx, func(v snapshot) bool { return v.res == Present })
	if err != nil {
		return "", err
	}
	return snap.id, nil
}

// AuthKind discriminates AuthState.
type AuthKind int

const (
	// AuthLoading means the session identifier has not resolved yet.
	AuthLoading AuthKind = iota
	// AuthUnauthenticated means no session exists.
	AuthUnauthenticated
	// AuthFullyLoggedIn means a session exists and is verified.
	AuthFullyLoggedIn
)

// AuthState is the client posture derived from the store. SessionID is set
// only when Kind is AuthFullyLoggedIn.
type AuthState struct {
	Kind      AuthKind
	SessionID string
}

// AuthState derives the current client posture from the store.
func (s *Store) AuthState() AuthState {
	id, res := s.Get()
	switch res {
	case Unresolved:
		return AuthState{Kind: AuthLoading}
	case Absent:
		return AuthState{Kind: AuthUnauthenticated}
	default:
		return AuthState{Kind: AuthFullyLoggedIn, SessionID: id}
	}
}

package session

import "errors"

var (
	// ErrAuthUnavailable indicates the identity provider could not be
	// reached after exhausting retries. Recoverable: a later reconcile
	// cycle tries again.
	ErrAuthUnavailable = errors.New("identity provider unavailable")
	// ErrSessionInvalid indicates the backend rejected a persisted session
	// identifier. Recovered by clearing the identifier and creating a new
	// session.
	ErrSessionInvalid = errors.New("session rejected by backend")
)

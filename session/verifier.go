package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avikhandakar-dev/vibe/backend"
	"github.com/avikhandakar-dev/vibe/internal/watch"
	"github.com/avikhandakar-dev/vibe/notify"
)

// IdentityState is what the external identity provider currently reports.
type IdentityState int

const (
	// IdentityLoading means the provider has not resolved yet.
	IdentityLoading IdentityState = iota
	// IdentityAuthenticated means the caller holds a provider identity.
	IdentityAuthenticated
	// IdentityUnauthenticated means the caller has no provider identity
	// and proceeds anonymously.
	IdentityUnauthenticated
)

// Verifier reconciles the persisted session identifier, the identity
// provider state, and the backend into exactly one session resolution. A
// cycle re-reads all inputs at its start, so overlapping cycles are safe to
// interleave; the latest committed store write wins.
type Verifier struct {
	store    *Store
	client   backend.Client
	bridge   *Bridge
	notifier notify.Notifier
	logger   *slog.Logger

	identity *watch.Value[IdentityState]
	trigger  chan struct{}

	// optInNoticeShown caps the consent notice at one per Verifier
	// lifetime, however many cycles re-observe the pending opt-ins.
	optInNoticeShown bool
}

// NewVerifier creates a Verifier. bridge may be nil only if the identity
// state never becomes authenticated.
func NewVerifier(store *Store, client backend.Client, bridge *Bridge, notifier notify.Notifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		store:    store,
		client:   client,
		bridge:   bridge,
		notifier: notifier,
		logger:   logger,
		identity: watch.NewValue(IdentityLoading),
		trigger:  make(chan struct{}, 1),
	}
}

// SetIdentity records the identity provider state and schedules a
// reconcile cycle.
func (v *Verifier) SetIdentity(state IdentityState) {
	v.identity.Set(state)
	v.wake()
}

// Identity returns the last recorded identity provider state.
func (v *Verifier) Identity() IdentityState {
	return v.identity.Get()
}

func (v *Verifier) wake() {
	select {
	case v.trigger <- struct{}{}:
	default:
	}
}

// Run drives reconcile cycles until ctx ends: one immediately, then one per
// identity or session-store change. Store writes made by a cycle itself do
// not re-trigger in a tight loop because the cycle re-reads state at its
// next start and commits nothing new.
func (v *Verifier) Run(ctx context.Context) {
	cancelStore := v.store.Subscribe(v.wake)
	defer cancelStore()

	for {
		if err := v.Reconcile(ctx); err != nil {
			v.logger.Error("session reconcile cycle", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-v.trigger:
		}
	}
}

// Reconcile runs one reconciliation cycle. Failures drive store transitions
// rather than propagating: only errors useful to a scheduling caller are
// returned, and no error here is fatal.
func (v *Verifier) Reconcile(ctx context.Context) error {
	identity := v.identity.Get()
	persisted, havePersisted, err := v.store.Persisted()
	if err != nil {
		return fmt.Errorf("reading persisted session identifier: %w", err)
	}

	if havePersisted {
		done, err := v.verifyPersisted(ctx, identity, persisted)
		if done || err != nil {
			return err
		}
	}
	return v.createSession(ctx, identity)
}

// verifyPersisted validates the persisted identifier. done is true when the
// cycle should stop here, either because the identifier was committed or
// because the cycle aborted; false falls through to session creation.
func (v *Verifier) verifyPersisted(ctx context.Context, identity IdentityState, persisted string) (done bool, err error) {
	if identity == IdentityAuthenticated {
		// Confirm the identity provider is reachable before trusting the
		// authenticated path. The credential itself is not forwarded; the
		// backend authenticates the transport on its own.
		if _, err := v.bridge.Credential(ctx); err != nil {
			// Abort without mutating the store; the next cycle retries.
			return true, err
		}

		valid, err := v.client.VerifySession(ctx, persisted)
		if err != nil {
			v.logger.Error("verifying session", slog.String("error", err.Error()))
			v.notifier.Error("Unexpected error verifying credentials")
			v.store.Clear()
			return true, nil
		}
		if !valid {
			v.logger.Info("persisted session rejected", slog.String("session_id", persisted))
			v.store.Clear()
			return false, nil
		}
		return true, v.checkOptIns(ctx, persisted)
	}

	// Anonymous-capable path: no credential needed.
	valid, err := v.client.VerifySession(ctx, persisted)
	if err != nil {
		v.logger.Error("verifying anonymous session", slog.String("error", err.Error()))
	} else if valid {
		v.store.Set(persisted)
		return true, nil
	}
	v.store.Clear()
	return false, nil
}

// checkOptIns commits the verified identifier once no consent requirements
// are outstanding. The pending-consent notice fires at most once per
// Verifier lifetime; a load error after that notice gets its own notice.
func (v *Verifier) checkOptIns(ctx context.Context, sessionID string) error {
	optIns, err := v.client.PendingOptIns(ctx, sessionID)
	if err != nil {
		if v.optInNoticeShown {
			v.notifier.Error("Unexpected error setting up your account.")
		}
		return fmt.Errorf("loading pending opt-ins: %w", err)
	}
	if len(optIns) == 0 {
		v.store.Set(sessionID)
		return nil
	}
	if !v.optInNoticeShown {
		v.notifier.Info("Please accept the terms of service to continue")
		v.optInNoticeShown = true
	}
	return nil
}

// createSession establishes a new session for the current identity posture.
func (v *Verifier) createSession(ctx context.Context, identity IdentityState) error {
	var (
		id  string
		err error
	)
	if identity == IdentityAuthenticated {
		id, err = v.client.StartSession(ctx)
	} else {
		id, err = v.client.StartAnonymousSession(ctx)
	}
	if err != nil {
		v.logger.Error("creating session", slog.String("error", err.Error()))
		v.store.Clear()
		return fmt.Errorf("creating session: %w", err)
	}
	v.store.Set(id)
	return nil
}

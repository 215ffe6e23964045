// Package startup composes session identity, workspace provisioning, and
// the sandbox boot sequence into the ordered startup of a chat: a
// Coordinator that guarantees a connected workspace exists for the
// (session, chat) pair, and a Sequencer that gates chat initialization on
// it.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avikhandakar-dev/vibe/backend"
	"github.com/avikhandakar-dev/vibe/internal/watch"
	"github.com/avikhandakar-dev/vibe/session"
)

// StatusKind discriminates the coordinator's reactive view of workspace
// provisioning for its (session, chat) pair.
type StatusKind int

const (
	// StatusSkipped means the session identifier is not resolved yet;
	// no backend read may be issued.
	StatusSkipped StatusKind = iota
	// StatusLoading means the credentials feed is subscribed but has not
	// delivered yet.
	StatusLoading
	// StatusPending means the feed delivered no record; provisioning has
	// been triggered and a record should appear.
	StatusPending
	// StatusConnecting mirrors a backend record in the connecting state.
	StatusConnecting
	// StatusConnected mirrors a connected record; Credentials is set.
	StatusConnected
	// StatusFailed mirrors a failed record; ErrorMessage is set.
	StatusFailed
)

// Status is the coordinator's current view. Credentials is non-nil only
// for StatusConnected.
type Status struct {
	Kind         StatusKind
	Credentials  *backend.ProjectStatus
	ErrorMessage string
}

// Coordinator guarantees a connected backend workspace exists for one
// (session, chat) pair, without user action. It observes the backend's
// provisioning record and triggers auto-provisioning when no record
// exists; every other transition is backend-driven and merely mirrored.
type Coordinator struct {
	store          *session.Store
	client         backend.Client
	chatID         string
	externalUserID string
	logger         *slog.Logger

	status *watch.Value[Status]

	mu        sync.Mutex
	triggered bool
}

// NewCoordinator creates a Coordinator for chatID. The session identifier
// is taken from store once it resolves.
func NewCoordinator(store *session.Store, client backend.Client, chatID, externalUserID string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:          store,
		client:         client,
		chatID:         chatID,
		externalUserID: externalUserID,
		logger:         logger,
		status:         watch.NewValue(Status{Kind: StatusSkipped}),
	}
}

// Status returns the current provisioning view.
func (c *Coordinator) Status() Status {
	return c.status.Get()
}

// Subscribe registers fn to run on every status change. The returned
// cancel function removes the subscription.
func (c *Coordinator) Subscribe(fn func(Status)) (cancel func()) {
	return c.status.Subscribe(fn)
}

// WaitForConnected blocks until the workspace reports connected and
// returns its credentials, or ctx.Err if the context ends first.
func (c *Coordinator) WaitForConnected(ctx context.Context) (*backend.ProjectStatus, error) {
	st, err := c.status.Wait(ctx, func(s Status) bool { return s.Kind == StatusConnected })
	if err != nil {
		return nil, err
	}
	return st.Credentials, nil
}

// Run observes the provisioning record until ctx ends. It blocks first on
// session resolution (status stays StatusSkipped meanwhile), then mirrors
// the backend's record, triggering auto-provisioning whenever no record
// exists.
func (c *Coordinator) Run(ctx context.Context) error {
	sessionID, err := c.store.WaitForID(ctx, "provisioningCoordinator")
	if err != nil {
		return err
	}
	c.status.Set(Status{Kind: StatusLoading})

	cancel := c.client.SubscribeProjectCredentials(sessionID, c.chatID, func(rec *backend.ProjectStatus) {
		c.observe(ctx, sessionID, rec)
	})
	defer cancel()

	<-ctx.Done()
	return ctx.Err()
}

func (c *Coordinator) observe(ctx context.Context, sessionID string, rec *backend.ProjectStatus) {
	if rec == nil {
		c.status.Set(Status{Kind: StatusPending})
		// No record at all: zero-click setup triggers provisioning, once
		// per absent observation.
		c.mu.Lock()
		trigger := !c.triggered
		c.triggered = true
		c.mu.Unlock()
		if trigger {
			if err := c.client.AutoProvisionProject(ctx, sessionID, c.chatID, c.externalUserID); err != nil {
				c.logger.Error("triggering auto-provisioning", slog.String("error", err.Error()))
			}
		}
		return
	}

	c.mu.Lock()
	c.triggered = false
	c.mu.Unlock()

	switch rec.Kind {
	case backend.StatusConnecting:
		// An attempt is in flight; never re-trigger on this observation.
		c.status.Set(Status{Kind: StatusConnecting})
	case backend.StatusConnected:
		c.status.Set(Status{Kind: StatusConnected, Credentials: rec})
	case backend.StatusFailed:
		c.status.Set(Status{Kind: StatusFailed, ErrorMessage: rec.ErrorMessage})
	default:
		c.logger.Error("unknown provisioning record kind", slog.String("kind", string(rec.Kind)))
	}
}

// Retry re-invokes provisioning after a failure. This is the only
// transition a client actively drives; all others are observed.
func (c *Coordinator) Retry(ctx context.Context) error {
	sessionID, res := c.store.Get()
	if res != session.Present {
		return ErrSessionUnresolved
	}
	if err := c.client.AutoProvisionProject(ctx, sessionID, c.chatID, c.externalUserID); err != nil {
		return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	return nil
}

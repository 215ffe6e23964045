// Package local provides an in-process reference implementation of
// backend.Client. It issues session identifiers, tracks chats, and drives
// workspace provisioning records through a Provisioner, guaranteeing at most
// one live provisioning attempt per (session, chat) pair even under
// duplicate concurrent calls.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/avikhandakar-dev/vibe/backend"
	"github.com/avikhandakar-dev/vibe/internal/uuid"
	"github.com/avikhandakar-dev/vibe/internal/watch"
)

// ErrUnknownSession is returned for operations against a session identifier
// the backend never issued or has discarded.
var ErrUnknownSession = errors.New("unknown session")

// Provisioner creates a backend workspace for a user. api.Client satisfies
// this by proxying to the hosting provider.
type Provisioner interface {
	Provision(ctx context.Context, userID, projectName string) (*backend.ProvisionedProject, error)
}

type sessionRecord struct {
	anonymous bool
	optIns    []backend.OptIn
}

// Backend is the in-process reference backend.
type Backend struct {
	provisioner Provisioner
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionRecord
	chats    map[string]bool
	projects map[string]*watch.Value[*backend.ProjectStatus]

	inflight singleflight.Group
	wg       sync.WaitGroup
}

var _ backend.Client = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the structured logger. If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New creates a Backend that provisions workspaces through p.
func New(p Provisioner, opts ...Option) *Backend {
	b := &Backend{
		provisioner: p,
		sessions:    make(map[string]*sessionRecord),
		chats:       make(map[string]bool),
		projects:    make(map[string]*watch.Value[*backend.ProjectStatus]),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Close waits for background provisioning work to finish.
func (b *Backend) Close() {
	b.wg.Wait()
}

func (b *Backend) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sessionID]
	return ok, nil
}

func (b *Backend) StartSession(ctx context.Context) (string, error) {
	return b.startSession(false), nil
}

func (b *Backend) StartAnonymousSession(ctx context.Context) (string, error) {
	return b.startSession(true), nil
}

func (b *Backend) startSession(anonymous bool) string {
	id := uuid.New()
	b.mu.Lock()
	b.sessions[id] = &sessionRecord{anonymous: anonymous}
	b.mu.Unlock()
	b.logger.Debug("session started", slog.String("session_id", id), slog.Bool("anonymous", anonymous))
	return id
}

// DropSession discards a session so later verification fails. Used to
// simulate backend-side invalidation.
func (b *Backend) DropSession(sessionID string) {
	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()
}

// SetPendingOptIns replaces the outstanding consent requirements for the
// session.
func (b *Backend) SetPendingOptIns(sessionID string, optIns []backend.OptIn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrUnknownSession)
	}
	rec.optIns = append([]backend.OptIn(nil), optIns...)
	return nil
}

func (b *Backend) PendingOptIns(ctx context.Context, sessionID string) ([]backend.OptIn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrUnknownSession)
	}
	return append([]backend.OptIn(nil), rec.optIns...), nil
}

func (b *Backend) InitializeChatAuto(ctx context.Context, chatID, sessionID, externalUserID string) error {
	b.mu.Lock()
	_, ok := b.sessions[sessionID]
	if ok {
		b.chats[sessionID+"/"+chatID] = true
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", sessionID, ErrUnknownSession)
	}

	// Provisioning continues in the background; callers observe progress
	// through the credentials subscription.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.provision(context.WithoutCancel(ctx), sessionID, chatID, externalUserID); err != nil {
			b.logger.Error("auto-provisioning failed",
				slog.String("session_id", sessionID),
				slog.String("chat_id", chatID),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (b *Backend) LoadProjectCredentials(ctx context.Context, sessionID, chatID string) (*backend.ProjectStatus, error) {
	return b.statusValue(sessionID, chatID).Get(), nil
}

func (b *Backend) SubscribeProjectCredentials(sessionID, chatID string, fn func(*backend.ProjectStatus)) func() {
	v := b.statusValue(sessionID, chatID)
	cancel := v.Subscribe(fn)
	fn(v.Get())
	return cancel
}

func (b *Backend) AutoProvisionProject(ctx context.Context, sessionID, chatID, externalUserID string) error {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.provision(context.WithoutCancel(ctx), sessionID, chatID, externalUserID); err != nil {
			b.logger.Error("auto-provisioning failed",
				slog.String("session_id", sessionID),
				slog.String("chat_id", chatID),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (b *Backend) statusValue(sessionID, chatID string) *watch.Value[*backend.ProjectStatus] {
	key := sessionID + "/" + chatID
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.projects[key]
	if !ok {
		v = watch.NewValue[*backend.ProjectStatus](nil)
		b.projects[key] = v
	}
	return v
}

// provision runs at most one attempt per (session, chat) pair at a time.
// Concurrent duplicate callers share a single attempt and its result.
func (b *Backend) provision(ctx context.Context, sessionID, chatID, externalUserID string) error {
	key := sessionID + "/" + chatID
	_, err, _ := b.inflight.Do(key, func() (any, error) {
		v := b.statusValue(sessionID, chatID)
		if cur := v.Get(); cur != nil && cur.Kind == backend.StatusConnected {
			// Already provisioned; nothing to do.
			return nil, nil
		}
		v.Set(&backend.ProjectStatus{Kind: backend.StatusConnecting})

		userID := externalUserID
		if userID == "" {
			userID = sessionID
		}
		// The attempt outlives any single caller's wait.
		res, err := b.provisioner.Provision(context.WithoutCancel(ctx), userID, "")
		if err != nil {
			v.Set(&backend.ProjectStatus{
				Kind:         backend.StatusFailed,
				ErrorMessage: err.Error(),
			})
			return nil, fmt.Errorf("provisioning workspace: %w", err)
		}
		v.Set(&backend.ProjectStatus{
			Kind:           backend.StatusConnected,
			DeploymentURL:  res.DeploymentURL,
			DeploymentName: res.DeploymentName,
			AdminKey:       res.AdminKey,
			ProjectSlug:    res.ProjectSlug,
			TeamSlug:       res.TeamSlug,
		})
		return nil, nil
	})
	return err
}

package startup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/avikhandakar-dev/vibe/backend"
	"github.com/avikhandakar-dev/vibe/notify"
	"github.com/avikhandakar-dev/vibe/session"
)

// connectTimeout bounds the wait for the workspace-connected signal during
// chat initialization.
const connectTimeout = 20000 * time.Millisecond

// Sequencer runs the ordered startup of a chat: resolved session, then
// backend initialization with auto-provisioning, then the connected signal
// under a hard timeout, then the sandbox snapshot checkpoint.
type Sequencer struct {
	store          *session.Store
	client         backend.Client
	boot           *BootState
	notifier       notify.Notifier
	logger         *slog.Logger
	externalUserID string
	timeout        time.Duration

	mu          sync.Mutex
	initialized bool
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithExternalUserID attaches the embedding application's user identifier
// to backend calls.
func WithExternalUserID(id string) SequencerOption {
	return func(s *Sequencer) {
		s.externalUserID = id
	}
}

// WithConnectTimeout overrides the workspace-connected wait bound.
func WithConnectTimeout(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		s.timeout = d
	}
}

// NewSequencer creates a Sequencer.
func NewSequencer(store *session.Store, client backend.Client, boot *BootState, notifier notify.Notifier, logger *slog.Logger, opts ...SequencerOption) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{
		store:    store,
		client:   client,
		boot:     boot,
		notifier: notifier,
		logger:   logger,
		timeout:  connectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChatInitialized reports whether InitializeChat has succeeded.
func (s *Sequencer) ChatInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// InitializeChat runs the full startup sequence for a new chat and reports
// success. Every failure is absorbed: it is logged, surfaced as a notice
// distinguishing timeout from generic failure, and yields false.
func (s *Sequencer) InitializeChat(ctx context.Context, chatID string) bool {
	err := s.initialize(ctx, chatID)
	if err == nil {
		return true
	}
	s.logger.Error("initializing chat", slog.String("chat_id", chatID), slog.String("error", err.Error()))
	if errors.Is(err, ErrConnectionTimeout) {
		s.notifier.Error("Backend setup timed out. Please try again.")
	} else {
		s.notifier.Error("Failed to set up backend. Please try again.")
	}
	return false
}

func (s *Sequencer) initialize(ctx context.Context, chatID string) error {
	sessionID, err := s.store.WaitForID(ctx, "initializeChat")
	if err != nil {
		return err
	}

	// Triggers server-side provisioning as part of chat creation.
	if err := s.client.InitializeChatAuto(ctx, chatID, sessionID, s.externalUserID); err != nil {
		return err
	}

	if err := s.waitForConnection(ctx, sessionID, chatID); err != nil {
		return err
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	// The snapshot must be restored before the first message is sent.
	return s.boot.WaitForStep(ctx, BootLoadingSnapshot)
}

// waitForConnection waits for the workspace-connected signal, bounded by
// the connect timeout. The timeout abandons only this wait: provisioning
// keeps running on the backend and a later status read can still observe
// connected.
func (s *Sequencer) waitForConnection(ctx context.Context, sessionID, chatID string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	connected := make(chan struct{})
	var once sync.Once
	cancelSub := s.client.SubscribeProjectCredentials(sessionID, chatID, func(rec *backend.ProjectStatus) {
		if rec != nil && rec.Kind == backend.StatusConnected {
			once.Do(func() { close(connected) })
		}
	})
	defer cancelSub()

	select {
	case <-connected:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrConnectionTimeout
	}
}

// InitializeExistingChat is the lighter variant for a chat that already
// exists: it verifies the workspace or issues the provisioning call, then
// returns without awaiting connection. The reactive status reflects the
// eventual outcome.
func (s *Sequencer) InitializeExistingChat(ctx context.Context, chatID string) bool {
	sessionID, err := s.store.WaitForID(ctx, "initializeExistingChat")
	if err != nil {
		s.logger.Error("initializing existing chat", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		return false
	}

	rec, err := s.client.LoadProjectCredentials(ctx, sessionID, chatID)
	if err != nil {
		s.logger.Error("loading workspace credentials", slog.String("chat_id", chatID), slog.String("error", err.Error()))
		return false
	}
	if rec == nil || rec.Kind != backend.StatusConnected {
		if err := s.client.AutoProvisionProject(ctx, sessionID, chatID, s.externalUserID); err != nil {
			s.logger.Error("provisioning existing chat", slog.String("chat_id", chatID), slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

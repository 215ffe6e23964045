package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// bridgeRetryLimit bounds the retries after a failed credential fetch.
	bridgeRetryLimit = 3
	// bridgeRetryDelay is the spacing between attempts.
	bridgeRetryDelay = 1000 * time.Millisecond
)

// TokenSource is the external identity provider: it issues bearer
// credentials and may fail transiently.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Bridge obtains credentials from a TokenSource, hiding transient failures
// behind a bounded retry. Only consulted on the authenticated identity path.
type Bridge struct {
	source TokenSource
	logger *slog.Logger
	delay  time.Duration

	mu      sync.Mutex
	retries int
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithRetryDelay overrides the spacing between credential attempts.
func WithRetryDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.delay = d
	}
}

// NewBridge creates a Bridge over the given token source.
func NewBridge(source TokenSource, logger *slog.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{source: source, logger: logger, delay: bridgeRetryDelay}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Credential returns a fresh bearer credential. A failed attempt is retried
// up to bridgeRetryLimit times, spaced by the retry delay; exhausting the
// retries surfaces ErrAuthUnavailable. Any success resets the retry counter.
// The retry timer is released when ctx ends, so teardown never leaves a
// pending callback behind.
func (b *Bridge) Credential(ctx context.Context) (string, error) {
	for {
		token, err := b.source.AccessToken(ctx)
		if err == nil {
			b.mu.Lock()
			b.retries = 0
			b.mu.Unlock()
			return token, nil
		}
		b.logger.Error("fetching access token from identity provider", slog.String("error", err.Error()))

		b.mu.Lock()
		if b.retries >= bridgeRetryLimit {
			// The counter stays exhausted until a success resets it, so
			// later calls fail fast instead of re-spinning the backoff.
			b.mu.Unlock()
			return "", fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
		}
		b.retries++
		b.mu.Unlock()

		timer := time.NewTimer(b.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
}

// Retries reports the current retry count.
func (b *Bridge) Retries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retries
}

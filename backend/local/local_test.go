package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avikhandakar-dev/vibe/backend"
)

// fakeProvisioner counts invocations and can be scripted to fail or block.
type fakeProvisioner struct {
	mu      sync.Mutex
	calls   atomic.Int64
	err     error
	release chan struct{} // when non-nil, Provision blocks until closed
}

func (f *fakeProvisioner) Provision(ctx context.Context, userID, projectName string) (*backend.ProvisionedProject, error) {
	f.calls.Add(1)
	f.mu.Lock()
	err := f.err
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &backend.ProvisionedProject{
		ProjectSlug:    "proj-" + userID,
		TeamSlug:       "team-1",
		DeploymentName: "dep-1",
		DeploymentURL:  "https://dep-1.example.dev",
		AdminKey:       "admin-key",
	}, nil
}

func waitForKind(t *testing.T, b *Backend, sessionID, chatID string, kind backend.StatusKind) *backend.ProjectStatus {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec, err := b.LoadProjectCredentials(context.Background(), sessionID, chatID)
		require.NoError(t, err)
		if rec != nil && rec.Kind == kind {
			return rec
		}
		select {
		case <-deadline:
			t.Fatalf("never observed status %q", kind)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	b := New(&fakeProvisioner{})
	defer b.Close()
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := b.VerifySession(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.VerifySession(ctx, "sess_bogus")
	require.NoError(t, err)
	require.False(t, ok)

	b.DropSession(id)
	ok, err = b.VerifySession(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPendingOptIns(t *testing.T) {
	b := New(&fakeProvisioner{})
	defer b.Close()
	ctx := context.Background()

	id, err := b.StartSession(ctx)
	require.NoError(t, err)

	optIns, err := b.PendingOptIns(ctx, id)
	require.NoError(t, err)
	require.Empty(t, optIns)

	require.NoError(t, b.SetPendingOptIns(id, []backend.OptIn{{Kind: "tos"}}))
	optIns, err = b.PendingOptIns(ctx, id)
	require.NoError(t, err)
	require.Len(t, optIns, 1)

	_, err = b.PendingOptIns(ctx, "sess_bogus")
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestConcurrentProvisioningIsIdempotent(t *testing.T) {
	p := &fakeProvisioner{}
	b := New(p)
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
		}()
	}
	wg.Wait()
	b.Close()

	rec := waitForKind(t, b, id, "chat-1", backend.StatusConnected)
	require.Equal(t, "proj-"+id, rec.ProjectSlug)
	// Duplicate concurrent calls share one attempt; a straggler that
	// arrives after completion sees connected and does nothing.
	require.LessOrEqual(t, p.calls.Load(), int64(2))
	require.GreaterOrEqual(t, p.calls.Load(), int64(1))
}

func TestProvisioningAlreadyConnectedIsNoop(t *testing.T) {
	p := &fakeProvisioner{}
	b := New(p)
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)

	require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
	waitForKind(t, b, id, "chat-1", backend.StatusConnected)
	calls := p.calls.Load()

	require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
	b.Close()
	require.Equal(t, calls, p.calls.Load())
}

func TestFailedThenRetry(t *testing.T) {
	p := &fakeProvisioner{err: errors.New("provider quota exceeded")}
	b := New(p)
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)

	require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
	rec := waitForKind(t, b, id, "chat-1", backend.StatusFailed)
	require.Contains(t, rec.ErrorMessage, "quota exceeded")

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()

	require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
	waitForKind(t, b, id, "chat-1", backend.StatusConnected)
	b.Close()
}

func TestSubscriptionDeliversCurrentThenChanges(t *testing.T) {
	p := &fakeProvisioner{}
	b := New(p)
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var kinds []string
	delivered := make(chan struct{}, 16)
	cancel := b.SubscribeProjectCredentials(id, "chat-1", func(rec *backend.ProjectStatus) {
		mu.Lock()
		if rec == nil {
			kinds = append(kinds, "absent")
		} else {
			kinds = append(kinds, string(rec.Kind))
		}
		mu.Unlock()
		delivered <- struct{}{}
	})
	defer cancel()

	// Initial delivery: no record yet.
	<-delivered
	mu.Lock()
	require.Equal(t, []string{"absent"}, kinds)
	mu.Unlock()

	require.NoError(t, b.AutoProvisionProject(ctx, id, "chat-1", ""))
	b.Close()

	waitForKind(t, b, id, "chat-1", backend.StatusConnected)
	mu.Lock()
	require.Equal(t, []string{"absent", "connecting", "connected"}, kinds)
	mu.Unlock()
}

func TestInitializeChatAutoTriggersProvisioning(t *testing.T) {
	p := &fakeProvisioner{}
	b := New(p)
	ctx := context.Background()

	id, err := b.StartAnonymousSession(ctx)
	require.NoError(t, err)

	require.NoError(t, b.InitializeChatAuto(ctx, "chat-1", id, "user-42"))
	rec := waitForKind(t, b, id, "chat-1", backend.StatusConnected)
	// externalUserID drives the project identity when supplied.
	require.Equal(t, "proj-user-42", rec.ProjectSlug)
	b.Close()

	require.ErrorIs(t, b.InitializeChatAuto(ctx, "chat-2", "sess_bogus", ""), ErrUnknownSession)
}

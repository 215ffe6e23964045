package startup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/avikhandakar-dev/vibe/backend"
	"github.com/avikhandakar-dev/vibe/backend/local"
	"github.com/avikhandakar-dev/vibe/notify"
	"github.com/avikhandakar-dev/vibe/session"
	"github.com/avikhandakar-dev/vibe/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sequencerEnv struct {
	store    *session.Store
	backend  *local.Backend
	boot     *BootState
	recorder *notify.Recorder
	seq      *Sequencer
}

func newSequencerEnv(t *testing.T, p local.Provisioner, opts ...SequencerOption) *sequencerEnv {
	t.Helper()
	env := &sequencerEnv{
		store:    session.NewStore(memory.NewStore(), testLogger()),
		backend:  local.New(p),
		boot:     NewBootState(),
		recorder: &notify.Recorder{},
	}
	t.Cleanup(env.backend.Close)
	env.seq = NewSequencer(env.store, env.backend, env.boot, env.recorder, testLogger(), opts...)

	id, err := env.backend.StartAnonymousSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, env.store.Set(id))
	return env
}

func TestInitializeChatSucceeds(t *testing.T) {
	env := newSequencerEnv(t, &stubProvisioner{})
	env.boot.Advance(BootSettingUpProject)

	require.True(t, env.seq.InitializeChat(context.Background(), "chat-1"))
	require.True(t, env.seq.ChatInitialized())
	require.Empty(t, env.recorder.Errors())

	id, _ := env.store.Get()
	rec, err := env.backend.LoadProjectCredentials(context.Background(), id, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, backend.StatusConnected, rec.Kind)
}

func TestInitializeChatWaitsForSnapshot(t *testing.T) {
	env := newSequencerEnv(t, &stubProvisioner{})

	done := make(chan bool, 1)
	go func() { done <- env.seq.InitializeChat(context.Background(), "chat-1") }()

	// Workspace connects quickly, but the sequence must not finish before
	// the snapshot checkpoint has been passed.
	select {
	case ok := <-done:
		t.Fatalf("initialization finished before snapshot was restored: %v", ok)
	case <-time.After(50 * time.Millisecond):
	}

	env.boot.Advance(BootSettingUpProject)
	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("initialization never finished")
	}
}

func TestInitializeChatTimesOut(t *testing.T) {
	p := &stubProvisioner{block: make(chan struct{})}
	env := newSequencerEnv(t, p, WithConnectTimeout(30*time.Millisecond))
	env.boot.Advance(BootReady)

	require.False(t, env.seq.InitializeChat(context.Background(), "chat-1"))
	require.False(t, env.seq.ChatInitialized())
	require.Equal(t, []string{"Backend setup timed out. Please try again."}, env.recorder.Errors())

	// The abandoned attempt keeps running; once the provider responds the
	// workspace still reaches connected.
	close(p.block)
	env.backend.Close()
	id, _ := env.store.Get()
	rec, err := env.backend.LoadProjectCredentials(context.Background(), id, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, backend.StatusConnected, rec.Kind)
}

func TestInitializeChatBootFailure(t *testing.T) {
	env := newSequencerEnv(t, &stubProvisioner{})
	env.boot.Fail("container crashed")

	require.False(t, env.seq.InitializeChat(context.Background(), "chat-1"))
	require.Equal(t, []string{"Failed to set up backend. Please try again."}, env.recorder.Errors())
}

func TestInitializeChatCancelledContext(t *testing.T) {
	p := &stubProvisioner{block: make(chan struct{})}
	env := newSequencerEnv(t, p)
	defer close(p.block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	require.False(t, env.seq.InitializeChat(ctx, "chat-1"))
	// Cancellation is a generic failure, not a timeout.
	require.Equal(t, []string{"Failed to set up backend. Please try again."}, env.recorder.Errors())
}

func TestInitializeExistingChatAlreadyConnected(t *testing.T) {
	p := &stubProvisioner{}
	env := newSequencerEnv(t, p)

	id, _ := env.store.Get()
	require.NoError(t, env.backend.AutoProvisionProject(context.Background(), id, "chat-1", ""))
	env.backend.Close()
	before := p.callCount()

	require.True(t, env.seq.InitializeExistingChat(context.Background(), "chat-1"))
	require.Equal(t, before, p.callCount())
}

func TestInitializeExistingChatProvisionsWhenAbsent(t *testing.T) {
	p := &stubProvisioner{}
	env := newSequencerEnv(t, p)

	require.True(t, env.seq.InitializeExistingChat(context.Background(), "chat-1"))
	env.backend.Close()
	require.Equal(t, 1, p.callCount())

	id, _ := env.store.Get()
	rec, err := env.backend.LoadProjectCredentials(context.Background(), id, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, backend.StatusConnected, rec.Kind)
}

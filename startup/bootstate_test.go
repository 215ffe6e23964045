package startup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBootStateAdvanceIsMonotonic(t *testing.T) {
	b := NewBootState()
	require.Equal(t, BootStarting, b.Step())

	b.Advance(BootLoadingSnapshot)
	require.Equal(t, BootLoadingSnapshot, b.Step())

	b.Advance(BootDownloadingDependencies)
	require.Equal(t, BootLoadingSnapshot, b.Step())

	b.Advance(BootReady)
	require.Equal(t, BootReady, b.Step())
}

func TestBootStateWaitForStep(t *testing.T) {
	b := NewBootState()

	done := make(chan error, 1)
	go func() {
		done <- b.WaitForStep(context.Background(), BootLoadingSnapshot)
	}()

	// Reaching the step is not enough; it completes when passed.
	b.Advance(BootLoadingSnapshot)
	select {
	case err := <-done:
		t.Fatalf("wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	b.Advance(BootSettingUpProject)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait never returned")
	}
}

func TestBootStateReadyCompletesItself(t *testing.T) {
	b := NewBootState()
	b.Advance(BootReady)
	require.NoError(t, b.WaitForStep(context.Background(), BootReady))
}

func TestBootStateFailUnblocksWaiters(t *testing.T) {
	b := NewBootState()

	done := make(chan error, 1)
	go func() {
		done <- b.WaitForStep(context.Background(), BootLoadingSnapshot)
	}()

	b.Fail("container crashed")
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrBootFailed)
		require.Contains(t, err.Error(), "container crashed")
	case <-time.After(5 * time.Second):
		t.Fatal("wait never returned")
	}

	// A failed boot ignores later advances.
	b.Advance(BootReady)
	require.Equal(t, BootStarting, b.Step())
}

func TestBootStateWaitHonorsContext(t *testing.T) {
	b := NewBootState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, b.WaitForStep(ctx, BootLoadingSnapshot), context.Canceled)
}

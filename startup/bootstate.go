package startup

import (
	"context"
	"fmt"

	"github.com/avikhandakar-dev/vibe/internal/watch"
)

// BootStep is a checkpoint in the sandbox container boot sequence. Steps
// are ordered; a step is completed once the state has advanced past it.
type BootStep int

const (
	// BootStarting is the initial state.
	BootStarting BootStep = iota
	// BootDownloadingDependencies covers fetching the container toolchain.
	BootDownloadingDependencies
	// BootLoadingSnapshot covers restoring the workspace snapshot.
	BootLoadingSnapshot
	// BootSettingUpProject covers wiring the provisioned workspace into
	// the container.
	BootSettingUpProject
	// BootReady means the container is fully booted.
	BootReady
)

func (s BootStep) String() string {
	switch s {
	case BootStarting:
		return "starting"
	case BootDownloadingDependencies:
		return "downloading-dependencies"
	case BootLoadingSnapshot:
		return "loading-snapshot"
	case BootSettingUpProject:
		return "setting-up-project"
	case BootReady:
		return "ready"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type bootSnapshot struct {
	step   BootStep
	failed bool
	errMsg string
}

// BootState tracks the sandbox container boot sequence and lets callers
// block until a checkpoint has been passed. The container runtime advances
// it; the boot sequencer only observes.
type BootState struct {
	v *watch.Value[bootSnapshot]
}

// NewBootState returns a BootState at BootStarting.
func NewBootState() *BootState {
	return &BootState{v: watch.NewValue(bootSnapshot{step: BootStarting})}
}

// Advance records that the boot sequence has reached step. Moving backward
// is ignored; boot progress is monotonic.
func (b *BootState) Advance(step BootStep) {
	cur := b.v.Get()
	if cur.failed || step <= cur.step {
		return
	}
	b.v.Set(bootSnapshot{step: step})
}

// Fail records a boot error. Waiters unblock with ErrBootFailed.
func (b *BootState) Fail(msg string) {
	cur := b.v.Get()
	b.v.Set(bootSnapshot{step: cur.step, failed: true, errMsg: msg})
}

// Step returns the step the boot sequence is currently on.
func (b *BootState) Step() BootStep {
	return b.v.Get().step
}

// WaitForStep blocks until step has completed, meaning the boot sequence
// has advanced past it. Returns ErrBootFailed if the boot errors first, or
// ctx.Err if the context ends.
func (b *BootState) WaitForStep(ctx context.Context, step BootStep) error {
	snap, err := b.v.Wait(ctx, func(s bootSnapshot) bool {
		// BootReady completes every step, including itself.
		return s.failed || s.step > step || s.step == BootReady
	})
	if err != nil {
		return err
	}
	if snap.failed {
		return fmt.Errorf("%w: %s", ErrBootFailed, snap.errMsg)
	}
	return nil
}

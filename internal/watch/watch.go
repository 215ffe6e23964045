// Package watch provides a small observable value: a mutex-guarded holder
// that notifies subscribers on every write and lets callers block until a
// predicate holds. It is the reactive primitive shared by the session store,
// the provisioning coordinator, and the container boot state.
package watch

import (
	"context"
	"sync"
)

// Value holds a T and notifies subscribers whenever it changes.
// The zero value is not usable; construct with NewValue.
type Value[T comparable] struct {
	mu      sync.Mutex
	current T
	subs    map[int]func(T)
	nextSub int
	changed chan struct{}
}

// NewValue returns a Value holding initial.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]func(T)),
		changed: make(chan struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the current value and notifies subscribers. Writing a value
// equal to the current one is a no-op, so a reconcile pass that re-commits
// the same state does not wake itself up again. Subscriber callbacks run
// synchronously on the caller's goroutine, after the value is visible to
// Get; a callback that re-reads the Value sees the new value.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	if value == v.current {
		v.mu.Unlock()
		return
	}
	v.current = value
	close(v.changed)
	v.changed = make(chan struct{})
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Subscribe registers fn to run on every subsequent Set. The returned cancel
// function removes the subscription; it is safe to call more than once.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// Wait blocks until pred is satisfied by the current value and returns that
// value. The predicate is re-evaluated after every Set, always against a
// fresh read, never a captured copy. Returns ctx.Err if the context ends
// first.
func (v *Value[T]) Wait(ctx context.Context, pred func(T) bool) (T, error) {
	for {
		v.mu.Lock()
		current := v.current
		changed := v.changed
		v.mu.Unlock()
		if pred(current) {
			return current, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

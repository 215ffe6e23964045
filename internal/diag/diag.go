// Package diag holds a process-wide diagnostic property map. Components tag
// identifying values (session identifier, chat identifier) here so error
// reports can include them.
package diag

import "sync"

var (
	mu    sync.RWMutex
	props = make(map[string]string)
)

// SetProperty records a diagnostic property, replacing any previous value.
func SetProperty(key, value string) {
	mu.Lock()
	props[key] = value
	mu.Unlock()
}

// Snapshot returns a copy of the current diagnostic properties.
func Snapshot() map[string]string {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

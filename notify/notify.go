// Package notify delivers user-facing transient notices. The orchestration
// core never renders UI; it reports informational and error notices through
// a Notifier and leaves presentation to the embedding application.
package notify

import (
	"log/slog"
	"sync"
)

// Notifier receives transient user-facing notices.
type Notifier interface {
	// Info reports an informational notice.
	Info(msg string)
	// Error reports an error notice.
	Error(msg string)
}

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier returns a Notifier backed by logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Info(msg string) {
	n.logger.Info(msg, slog.String("notice", "info"))
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Error(msg, slog.String("notice", "error"))
}

// Recorder captures notices for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

var _ Notifier = (*Recorder)(nil)

func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	r.infos = append(r.infos, msg)
	r.mu.Unlock()
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

// Infos returns a copy of the recorded informational notices.
func (r *Recorder) Infos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

// Errors returns a copy of the recorded error notices.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// Package backend defines the remote-procedure boundary between the client
// orchestrator and the backend that owns sessions, chats, and workspace
// provisioning records. Implementations are expected to be network clients;
// backend/local provides an in-process reference implementation.
package backend

import "context"

// StatusKind discriminates a workspace provisioning record.
type StatusKind string

const (
	// StatusConnecting means a provisioning attempt is in flight.
	StatusConnecting StatusKind = "connecting"
	// StatusConnected means the workspace exists and credentials are available.
	StatusConnected StatusKind = "connected"
	// StatusFailed means the last provisioning attempt failed.
	StatusFailed StatusKind = "failed"
)

// ProjectStatus is the provisioning record for one (session, chat) pair.
// A nil *ProjectStatus means no record exists yet; the record is owned by
// the backend and only observed by clients.
type ProjectStatus struct {
	Kind StatusKind `json:"kind"`

	// Populated when Kind is StatusConnected.
	DeploymentURL  string `json:"deploymentUrl,omitempty"`
	DeploymentName string `json:"deploymentName,omitempty"`
	AdminKey       string `json:"adminKey,omitempty"`
	ProjectSlug    string `json:"projectSlug,omitempty"`
	TeamSlug       string `json:"teamSlug,omitempty"`

	// Populated when Kind is StatusFailed.
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ProvisionedProject holds the credentials returned by a successful
// workspace-creation call against the hosting provider.
type ProvisionedProject struct {
	ProjectSlug    string `json:"projectSlug"`
	TeamSlug       string `json:"teamSlug"`
	DeploymentName string `json:"deploymentName"`
	DeploymentURL  string `json:"deploymentUrl"`
	AdminKey       string `json:"adminKey"`
}

// OptIn is a consent requirement that must be accepted before a session is
// treated as fully usable.
type OptIn struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// Client is the remote-procedure surface the orchestrator consumes. All
// methods are safe for concurrent use.
type Client interface {
	// VerifySession reports whether sessionID names a live session.
	VerifySession(ctx context.Context, sessionID string) (bool, error)

	// StartSession creates a session for an authenticated caller and
	// returns its identifier.
	StartSession(ctx context.Context) (string, error)

	// StartAnonymousSession creates a session without any identity and
	// returns its identifier.
	StartAnonymousSession(ctx context.Context) (string, error)

	// PendingOptIns returns the consent requirements still outstanding for
	// the session.
	PendingOptIns(ctx context.Context, sessionID string) ([]OptIn, error)

	// InitializeChatAuto records the chat under the session and triggers
	// server-side workspace provisioning for it.
	InitializeChatAuto(ctx context.Context, chatID, sessionID, externalUserID string) error

	// LoadProjectCredentials returns the provisioning record for the pair,
	// or nil when no record exists.
	LoadProjectCredentials(ctx context.Context, sessionID, chatID string) (*ProjectStatus, error)

	// SubscribeProjectCredentials registers fn for the pair's provisioning
	// record. fn is invoked once with the current record as soon as it is
	// loaded (nil when no record exists) and again on every change. The
	// returned cancel function removes the subscription.
	SubscribeProjectCredentials(sessionID, chatID string, fn func(*ProjectStatus)) (cancel func())

	// AutoProvisionProject asks the backend to provision a workspace for
	// the pair. It returns once the request is accepted; completion is
	// observed through the credentials subscription. The backend
	// guarantees at most one live provisioning attempt per pair; duplicate
	// concurrent calls are safe and never create a second workspace.
	AutoProvisionProject(ctx context.Context, sessionID, chatID, externalUserID string) error
}

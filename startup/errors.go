package startup

import "errors"

var (
	// ErrConnectionTimeout indicates the workspace did not report connected
	// within the provisioning wait bound. The underlying provisioning work
	// keeps running; only the wait is abandoned.
	ErrConnectionTimeout = errors.New("connection timeout")
	// ErrProvisioningFailed indicates the backend reported a failed
	// provisioning attempt. Recoverable through an explicit retry.
	ErrProvisioningFailed = errors.New("provisioning failed")
	// ErrBootFailed indicates the sandbox container reported a boot error.
	ErrBootFailed = errors.New("container boot failed")
	// ErrSessionUnresolved indicates an operation needed a concrete session
	// identifier before one was established.
	ErrSessionUnresolved = errors.New("session not resolved")
)

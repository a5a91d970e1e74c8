package session

import "errors"

var (
	// ErrNotAuthenticated is returned by accessors while no session bundle is held.
	// Callers should treat it as retryable.
	ErrNotAuthenticated = errors.New("dashboard session tokens are not available")

	// ErrCredentialsNotConfigured is returned by Refresh when no username and
	// password are configured.
	ErrCredentialsNotConfigured = errors.New("cannot refresh session without dashboard username and password")
)

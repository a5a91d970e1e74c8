package tokenstore

import (
	"context"
	"fmt"
	"os"
	"time"
)

// EnvStore provides read-only access to a token triple supplied through
// environment variables. Suitable for seeding a session, not for caching refreshes.
type EnvStore struct {
	xsrfKey    string
	sessionKey string
	formKey    string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading the given variable names.
// formKey may be empty, in which case the XSRF token doubles as form token.
func NewEnvStore(xsrfKey, sessionKey, formKey string) (*EnvStore, error) {
	if xsrfKey == "" {
		return nil, fmt.Errorf("xsrf environment key cannot be empty")
	}
	if sessionKey == "" {
		return nil, fmt.Errorf("session environment key cannot be empty")
	}

	return &EnvStore{
		xsrfKey:    xsrfKey,
		sessionKey: sessionKey,
		formKey:    formKey,
	}, nil
}

// Read synthesizes a bundle from the environment. The bundle has no expiry and
// is stamped with the current time. Returns ErrNotFound unless both the XSRF
// token and session cookie variables are set and non-empty.
func (e *EnvStore) Read(ctx context.Context) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}

	xsrf := os.Getenv(e.xsrfKey)
	session := os.Getenv(e.sessionKey)
	if xsrf == "" || session == "" {
		return Bundle{}, fmt.Errorf("%w: environment variables %s and %s must both be set", ErrNotFound, e.xsrfKey, e.sessionKey)
	}

	// No form token is obtainable without a login; the XSRF value is the best stand-in
	form := xsrf
	if e.formKey != "" {
		if v, ok := os.LookupEnv(e.formKey); ok && v != "" {
			form = v
		}
	}

	return Bundle{
		XSRFToken:     xsrf,
		SessionCookie: session,
		FormToken:     form,
		RefreshedAt:   time.Now().UTC(),
	}, nil
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvStore) Write(ctx context.Context, _ Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage: %w", ErrReadOnly)
}

package tokenstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Read when the backend holds no bundle.
	ErrNotFound = errors.New("no stored session bundle")

	// ErrIncompleteBundle is returned when a bundle lacks the XSRF token or session cookie.
	ErrIncompleteBundle = errors.New("incomplete session bundle")

	// ErrInsecurePermissions is returned when a cache file is readable by others.
	ErrInsecurePermissions = errors.New("insecure cache file permissions")

	// ErrReadOnly is returned by Write on stores that cannot persist bundles.
	ErrReadOnly = errors.New("store is read-only")
)

// Store reads and writes session bundles to persistent storage.
type Store interface {
	// Read returns the stored bundle. Returns an error wrapping ErrNotFound if
	// nothing is stored, or ErrIncompleteBundle if the stored bundle is partial.
	Read(ctx context.Context) (Bundle, error)

	// Write persists the bundle, replacing any previous one. Returns ErrReadOnly
	// for read-only backends (e.g., environment variables).
	Write(ctx context.Context, b Bundle) error
}

package tokenstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle is the credential set of one authenticated dashboard session.
// Bundles are values: a refresh replaces the whole bundle, it never edits one.
type Bundle struct {
	XSRFToken     string     `json:"xsrf_token"`
	SessionCookie string     `json:"session_cookie"`
	FormToken     string     `json:"form_token"`
	RefreshedAt   time.Time  `json:"refreshed_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// Validate reports ErrIncompleteBundle unless both cookies are present.
// An empty form token is tolerated for bundles written by older versions.
func (b Bundle) Validate() error {
	if b.XSRFToken == "" {
		return fmt.Errorf("%w: missing xsrf_token", ErrIncompleteBundle)
	}
	if b.SessionCookie == "" {
		return fmt.Errorf("%w: missing session_cookie", ErrIncompleteBundle)
	}
	return nil
}

// Expired reports whether the bundle carries an expiry at or before now.
// Bundles without an expiry never expire on their own.
func (b Bundle) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// marshalBundle encodes b as an indented JSON object with UTC timestamps.
func marshalBundle(b Bundle) ([]byte, error) {
	b.RefreshedAt = b.RefreshedAt.UTC()
	if b.ExpiresAt != nil {
		expiresAt := b.ExpiresAt.UTC()
		b.ExpiresAt = &expiresAt
	}
	return json.MarshalIndent(b, "", "  ")
}

// unmarshalBundle decodes and validates a stored bundle. A missing
// refreshed_at is treated as "now" so the refresh loop still has a reference point.
func unmarshalBundle(data []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bundle{}, err
	}
	if b.RefreshedAt.IsZero() {
		b.RefreshedAt = time.Now().UTC()
	}
	b.RefreshedAt = b.RefreshedAt.UTC()
	if b.ExpiresAt != nil {
		expiresAt := b.ExpiresAt.UTC()
		b.ExpiresAt = &expiresAt
	}
	return b, nil
}

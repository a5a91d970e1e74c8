package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage for bundles.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// The bundle is stored as a single JSON secret.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the bundle from the system keyring.
func (k *KeyringStore) Read(ctx context.Context) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Bundle{}, fmt.Errorf("%w: keyring service %s, user %s", ErrNotFound, k.service, k.user)
	}
	if err != nil {
		return Bundle{}, err
	}
	if secret == "" {
		return Bundle{}, fmt.Errorf("%w: empty secret in keyring for service %s, user %s", ErrNotFound, k.service, k.user)
	}

	return unmarshalBundle([]byte(secret))
}

// Write persists the bundle to the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, b Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}

	data, err := marshalBundle(b)
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	return keyring.Set(k.service, k.user, string(data))
}

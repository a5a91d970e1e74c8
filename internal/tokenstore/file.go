package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore provides atomic JSON file storage for bundles with secure permissions.
// Writes use temp file + rename so readers never see a partial file.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Path returns the location of the cache file.
func (f *FileStore) Path() string {
	return f.filePath
}

// Read returns the stored bundle. Returns error if the file doesn't exist,
// is malformed, holds a partial bundle, or has insecure permissions.
func (f *FileStore) Read(ctx context.Context) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Bundle{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return Bundle{}, err
	}
	if info.Mode().Perm() != 0600 {
		return Bundle{}, fmt.Errorf("%w on %s: %04o (expected 0600, run chmod 600 on it to reuse the session)",
			ErrInsecurePermissions, f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return Bundle{}, err
	}

	b, err := unmarshalBundle(data)
	if err != nil {
		return Bundle{}, fmt.Errorf("%s: %w", f.filePath, err)
	}
	return b, nil
}

// Write atomically saves the bundle using temp file + rename for crash safety.
// The file ends up with 0600 permissions (owner read/write only).
func (f *FileStore) Write(ctx context.Context, b Bundle) error {
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

	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, ".*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths; Remove fails harmlessly after rename
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Permissions must be final before the file becomes visible
	if err := os.Chmod(tempName, 0600); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.filePath)
}

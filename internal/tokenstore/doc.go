// Package tokenstore provides persistent storage for dashboard session bundles.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local JSON file with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: Read-only environment variables holding a pre-supplied token triple
//
// File and keyring stores act as the refresh cache. The env store only seeds
// the manager when nothing is cached.
package tokenstore

// Package storage defines the agent's key/value session stores.
//
// The agent keeps two slots with the same interface and different
// lifetimes: the durable slot (BoltDB file) survives agent restarts and
// backs "remember me", the ephemeral slot (process memory) dies with the
// process and backs single-session logins. Which slot a value lands in is
// decided by the session resolver, not here.
package storage

import (
	"context"
	"errors"
)

// Common client storage errors
var (
	// ErrKeyNotFound indicates the key has no stored value
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

// Store is a flat key/value store scoped to one device profile.
type Store interface {
	// Get returns the stored value or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value under key, overwriting any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes the key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases underlying resources
	Close() error
}

// Well-known keys. Auth token and MAC address are per-organization,
// the remember-me and SMS sent flags are global.
const (
	KeyRememberMe     = "rememberMe"
	KeyPhoneTokenSent = "phoneTokenSent"
)

// AuthTokenKey returns the storage key of the organization's session cookie.
func AuthTokenKey(orgSlug string) string {
	return orgSlug + "_auth_token"
}

// UsernameKey returns the storage key of the organization's username cookie.
func UsernameKey(orgSlug string) string {
	return orgSlug + "_username"
}

// MacaddrKey returns the storage key of the MAC address captured from the
// captive portal gateway.
func MacaddrKey(orgSlug string) string {
	return orgSlug + "_macaddr"
}

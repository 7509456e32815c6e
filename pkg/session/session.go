// Package session provides durable key/value persistence for the client
// session. It defines the Store interface implemented by the storage
// backends and the Manager, the single writer of the session token and the
// cached profile image preference.
package session

import (
	"context"
	"errors"
	"fmt"
)

// Persisted keys. Absence of either key is a valid, expected state.
const (
	// KeyToken holds the opaque session token.
	KeyToken = "userToken"

	// KeyImage holds the locally picked profile image reference.
	KeyImage = "userImage"
)

// ErrClosed is returned by stores after Close has been called.
var ErrClosed = errors.New("session store is closed")

// Store defines the interface for session persistence.
//
// Every operation is independently atomic. There is no cross-key transaction:
// removing two keys is two independent operations.
type Store interface {
	// Get returns the value stored under key. found is false when the key is
	// absent; absence is never reported as an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// Op names a store operation in a StorageError.
type Op string

// Store operations.
const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// StorageError reports a failed persistence operation.
type StorageError struct {
	Op  Op
	Key string
	Err error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

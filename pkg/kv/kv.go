// Package kv defines the versioned key/value contract dashboard stores persist
// through, plus in-memory and file backends.
package kv

import (
	"context"
	"errors"
)

// ErrVersionMismatch reports a compare-and-swap write against a stale version.
var ErrVersionMismatch = errors.New("kv: version mismatch")

// Record is a stored value with its monotonic version. Version starts at 1
// on first write.
type Record struct {
	Value   []byte
	Version int64
}

// Backend stores opaque values by key.
type Backend interface {
	// Get returns the record and whether the key exists.
	Get(ctx context.Context, key string) (Record, bool, error)
	// Put writes value and returns the new version. When expectedVersion > 0
	// the write only succeeds if the current version matches.
	Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error)
	// Delete removes the key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

func checkVersion(exists bool, current, expected int64) error {
	if expected <= 0 {
		return nil
	}
	if !exists || current != expected {
		return ErrVersionMismatch
	}
	return nil
}

// Package storage holds the key-value blob stores behind the expense
// repository and the SQLite tables for export jobs.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been written or
	// was deleted.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable wraps any failure of the underlying medium.
	ErrUnavailable = errors.New("storage unavailable")
)

// BlobStore keeps opaque values by key. Each Put and Delete is atomic: a
// reader sees either the previous value or the new one.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

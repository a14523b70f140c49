// Package storage persists uploaded files under a per-user namespace.
// Two backends implement the same contract: local disk (the default) and
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound means the file doesn't exist inside the owner's
	// namespace. A file owned by someone else reports the same error so
	// nothing leaks across users.
	ErrNotFound = errors.New("file not found")

	// ErrUnsafeName means the requested name would resolve outside the
	// owner's namespace.
	ErrUnsafeName = errors.New("unsafe file name")
)

// StoredFile describes one persisted file.
type StoredFile struct {
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Backend is the file store contract. Every path/key is derived from the
// owner's id plus the file name, callers never supply absolute paths.
// Writes overwrite silently, last write wins.
type Backend interface {
	// Put streams r verbatim into the owner's namespace. The declared
	// size must already have been checked against the upload ceiling.
	Put(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (*StoredFile, error)

	// List returns every regular file in the owner's namespace. A
	// namespace that doesn't exist yet yields an empty list, not an
	// error.
	List(ctx context.Context, userID string) ([]StoredFile, error)

	// Delete removes a single file, returning ErrNotFound when there is
	// nothing to remove.
	Delete(ctx context.Context, userID, filename string) error
}

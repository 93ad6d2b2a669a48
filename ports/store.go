package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when no document exists
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when an update lost every optimistic retry
	ErrConflict = errors.New("document modified concurrently")
)

// KeepTTL tells Update to preserve the document's existing expiry
const KeepTTL time.Duration = -1

// UpdateFunc receives the current document, or nil when absent, and returns
// the replacement. Returning nil data leaves the document unchanged. An error
// aborts the update and is returned from Update as is.
type UpdateFunc func(current []byte) ([]byte, error)

// MatchFunc selects documents for batch deletion
type MatchFunc func(id string, data []byte) bool

// DocumentStore is a keyed document backend with atomic single document updates
type DocumentStore interface {
	// Get returns the document or ErrNotFound
	Get(ctx context.Context, collection, id string) ([]byte, error)

	// Set creates or replaces a document. A zero ttl never expires.
	Set(ctx context.Context, collection, id string, data []byte, ttl time.Duration) error

	// Update performs an atomic read-modify-write of a single document
	Update(ctx context.Context, collection, id string, ttl time.Duration, fn UpdateFunc) error

	// DeleteWhere removes every document in collection selected by match
	DeleteWhere(ctx context.Context, collection string, match MatchFunc) (int, error)
}

package store

import (
	"context"
	"errors"
)

// Collections persisted by the stores.
const (
	CollectionSessions = "sessions"
	CollectionMemories = "memories"
	CollectionMoods    = "moods"
)

// Single-document collections keep their whole state under one id.
const (
	memoriesDocumentID = "memories"
	moodsDocumentID    = "mood-entries"
)

// ErrDocumentNotFound is returned by a Driver when the requested document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Driver is a document backend. Documents are opaque payloads grouped into
// collections and addressed by id; Put replaces the whole document.
type Driver interface {
	// Name identifies the backend in logs.
	Name() string

	// Migrate prepares the backend schema. It must be idempotent.
	Migrate(ctx context.Context) error

	Get(ctx context.Context, collection, id string) ([]byte, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	// Delete is a no-op for a missing document.
	Delete(ctx context.Context, collection, id string) error
	// List returns every document of a collection keyed by id.
	List(ctx context.Context, collection string) (map[string][]byte, error)

	Close() error
}

package ingestion

import (
	"context"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// Repository defines the storage contract for documents.
// Save must be a compare-and-swap on the document revision.
type Repository interface {
	Create(ctx context.Context, doc *domdoc.Document) error
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Save(ctx context.Context, doc *domdoc.Document) error
	List(ctx context.Context, ownerID int64, cursor string, limit int) (
		docs []domdoc.Document, nextCursor string, err error,
	)
	ListInFlight(ctx context.Context) ([]domdoc.Document, error)
}

// OwnerChecker reports whether an owner is registered.
type OwnerChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// ObjectStore fetches raw document bytes by storage key.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Extractor converts raw bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, contentType, filename string, data []byte) (string, error)
}

// FormatChecker is optionally implemented by an Extractor to reject unsupported uploads at submission.
type FormatChecker interface {
	Supports(contentType, filename string) bool
}

// Summarizer produces a short summary of text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Scheduler runs a task in the background and returns without waiting for it.
type Scheduler interface {
	Schedule(task func()) error
}

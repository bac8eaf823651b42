package chi

import (
	"context"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

// IngestionService drives the document lifecycle.
type IngestionService interface {
	Submit(ctx context.Context, in ingestionuc.SubmitInput) (domdoc.Document, error)
	RequestProcessing(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	GetStatus(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	List(ctx context.Context, ownerID int64, cursor string, limit int) ([]domdoc.Document, string, error)
}

// OwnerService registers document owners.
type OwnerService interface {
	Register(ctx context.Context, id int64) (domowner.Owner, bool, error)
}

// RetrievalService selects query-relevant chunks from a processed document.
type RetrievalService interface {
	BuildContext(ctx context.Context, id string, ownerID int64, q retrievaluc.Query) ([]retrievaluc.Chunk, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

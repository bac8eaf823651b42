package docingest

import "github.com/kailas-cloud/docingest/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrOwnerNotFound          = domain.ErrOwnerNotFound
	ErrForbidden              = domain.ErrForbidden
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrUnsupportedFormat      = domain.ErrUnsupportedFormat
	ErrInvalidTransition      = domain.ErrInvalidTransition
	ErrRevisionConflict       = domain.ErrRevisionConflict
	ErrOverloaded             = domain.ErrOverloaded
	ErrNotImplemented         = domain.ErrNotImplemented
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	// ErrOwnerNotFound signals an unknown owner reference.
	ErrOwnerNotFound = fmt.Errorf("owner %w", ErrNotFound)
	// ErrForbidden signals that the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput signals a malformed or unusable request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat signals a content type no extractor understands.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtractionFailure signals that no usable text could be produced from a source document.
	ErrExtractionFailure = errors.New("extraction failed")
	// ErrSummarizationFailure signals a failed or empty summarization.
	ErrSummarizationFailure = errors.New("summarization failed")
	// ErrRateLimited signals a rate limit hit on an upstream provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransientIO signals a storage or network failure that may succeed on retry.
	ErrTransientIO = errors.New("transient io error")
	// ErrInternal signals an unexpected failure.
	ErrInternal = errors.New("internal error")
	// ErrOverloaded signals that the worker pool refused new work.
	ErrOverloaded = errors.New("overloaded")
	// ErrNotImplemented signals an unconfigured or unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidTransition signals an operation that the current document state does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrRevisionConflict signals an optimistic locking conflict.
	ErrRevisionConflict = errors.New("revision conflict")
)

// RevisionConflictError wraps ErrRevisionConflict with the current resource revision.
type RevisionConflictError struct {
	CurrentRevision int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("%s: current revision is %d", ErrRevisionConflict.Error(), e.CurrentRevision)
}

func (e *RevisionConflictError) Unwrap() error { return ErrRevisionConflict }

// NewRevisionConflict creates a revision conflict error.
func NewRevisionConflict(currentRevision int64) error {
	return &RevisionConflictError{CurrentRevision: currentRevision}
}

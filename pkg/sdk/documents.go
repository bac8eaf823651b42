package docingest

import (
	"context"
	"fmt"
	"time"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

const defaultPollInterval = 500 * time.Millisecond

// DocumentService manages the documents of a single owner.
type DocumentService struct {
	ownerID   int64
	ingestion ingestionUseCase
	retrieval retrievalUseCase
	obs       *observer
}

// Submit records an upload. The document starts in StatusNone; call Process to extract it.
func (s *DocumentService) Submit(ctx context.Context, req SubmitRequest) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("submit", start, err, "owner_id", s.ownerID) }()

	d, err := s.ingestion.Submit(ctx, ingestionuc.SubmitInput{
		OwnerID:     s.ownerID,
		StorageKey:  req.StorageKey,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		return Document{}, fmt.Errorf("submit: %w", err)
	}
	return fromInternalDocument(d), nil
}

// Process schedules extraction and summarization and returns the pending snapshot
// without waiting. Calling it again restarts processing; the latest request wins.
func (s *DocumentService) Process(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("process", start, err, "document_id", id) }()

	d, err := s.ingestion.RequestProcessing(ctx, id, s.ownerID)
	if err != nil {
		return Document{}, fmt.Errorf("process: %w", err)
	}
	return fromInternalDocument(d), nil
}

// Get returns the current snapshot of a document.
func (s *DocumentService) Get(ctx context.Context, id string) (_ Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("get", start, err, "document_id", id) }()

	d, err := s.ingestion.GetStatus(ctx, id, s.ownerID)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return fromInternalDocument(d), nil
}

// Wait polls Get every interval until the document is done or failed, or ctx ends.
// A document that was never processed is returned as is.
func (s *DocumentService) Wait(ctx context.Context, id string, interval time.Duration) (Document, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d, err := s.ingestion.GetStatus(ctx, id, s.ownerID)
		if err != nil {
			return Document{}, fmt.Errorf("wait: %w", err)
		}
		if st := d.Status(); st.IsTerminal() || st == domdoc.StatusNone {
			return fromInternalDocument(d), nil
		}
		select {
		case <-ctx.Done():
			return fromInternalDocument(d), fmt.Errorf("wait: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// List returns a page of the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, cursor string, limit int) (_ ListResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("list", start, err) }()

	docs, next, err := s.ingestion.List(ctx, s.ownerID, cursor, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Document, len(docs))
	for i := range docs {
		out[i] = fromInternalDocument(docs[i])
	}
	return ListResult{Documents: out, NextCursor: next}, nil
}

// Context selects passages of a processed document relevant to q. Requires WithEmbedder.
func (s *DocumentService) Context(ctx context.Context, id string, q ContextQuery) (_ []Chunk, err error) {
	start := time.Now()
	defer func() { s.obs.observe("context", start, err, "document_id", id) }()

	if s.retrieval == nil {
		return nil, fmt.Errorf("context: embedder not configured (use WithEmbedder): %w", ErrNotImplemented)
	}
	chunks, err := s.retrieval.BuildContext(ctx, id, s.ownerID, retrievaluc.Query{Text: q.Text, K: q.K, Lambda: q.Lambda})
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return fromInternalChunks(chunks), nil
}

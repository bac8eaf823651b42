// Package retrieval selects query-relevant, non-redundant passages from a processed document.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	"github.com/kailas-cloud/docingest/internal/domain/search/mmr"
)

// DocumentReader loads a document on behalf of its owner.
type DocumentReader interface {
	GetStatus(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
}

// Config holds selection defaults.
type Config struct {
	ChunkTargetLength int
	K                 int
	Lambda            float64
}

// Query is one context request. Nil K or Lambda take the configured defaults.
type Query struct {
	Text   string
	K      *int
	Lambda *float64
}

// Chunk is one selected passage.
type Chunk struct {
	// Index is the segment position within the document.
	Index     int
	Text      string
	Relevance float64
}

// Service builds retrieval contexts.
type Service struct {
	docs     DocumentReader
	embedder domain.Embedder
	cfg      Config
}

// New creates a retrieval service. A nil embedder disables BuildContext.
func New(docs DocumentReader, embedder domain.Embedder, cfg Config) *Service {
	if cfg.ChunkTargetLength <= 0 {
		cfg.ChunkTargetLength = chunk.DefaultTargetLength
	}
	if cfg.K <= 0 {
		cfg.K = mmr.DefaultK
	}
	return &Service{docs: docs, embedder: embedder, cfg: cfg}
}

// Enabled reports whether an embedder is configured.
func (s *Service) Enabled() bool { return s.embedder != nil }

// BuildContext segments the document text and returns the MMR selection for q, in selection order.
func (s *Service) BuildContext(ctx context.Context, id string, ownerID int64, q Query) ([]Chunk, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("retrieval requires an embedding provider: %w", domain.ErrNotImplemented)
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	doc, err := s.docs.GetStatus(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.Status() != domdoc.StatusDone {
		return nil, fmt.Errorf("document %s is %s, not done: %w", id, doc.Status(), domain.ErrInvalidTransition)
	}

	segments := chunk.Split(doc.Text(), s.cfg.ChunkTargetLength)
	if len(segments) == 0 {
		return []Chunk{}, nil
	}

	k, lambda := s.cfg.K, s.cfg.Lambda
	if q.K != nil {
		k = *q.K
	}
	if q.Lambda != nil {
		lambda = *q.Lambda
	}

	query, candidates, err := domain.EmbedAgainst(ctx, s.embedder, q.Text, segments)
	if err != nil {
		return nil, fmt.Errorf("embed context: %w", err)
	}

	indices := mmr.Select(query, candidates, k, lambda)
	out := make([]Chunk, len(indices))
	for i, idx := range indices {
		out[i] = Chunk{
			Index:     idx,
			Text:      segments[idx],
			Relevance: mmr.Cosine(query, candidates[idx]),
		}
	}
	return out, nil
}

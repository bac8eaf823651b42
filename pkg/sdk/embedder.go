package docingest

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// Embedder converts text to vector embeddings.
// Optional: without one, oversized documents are summarized from their leading
// segments and Context is unavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// If the provided Embedder also implements BatchEmbedder, segment embedding uses it.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Summarizer produces a summary of extracted document text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ObjectStore loads uploaded document bytes by storage key.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder and domain.BatchEmbedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	b, ok := a.inner.(BatchEmbedder)
	if !ok {
		out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
		for i, t := range texts {
			r, err := a.Embed(ctx, t)
			if err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("embed item %d: %w", i, err)
			}
			out.Embeddings[i] = r.Embedding
			out.PromptTokens += r.PromptTokens
			out.TotalTokens += r.TotalTokens
		}
		return out, nil
	}

	r, err := b.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

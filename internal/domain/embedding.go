package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
// Vectors are produced by an external provider; this service only consumes them.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies upstream provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
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

// EmbedAll vectorizes texts with a single batch call when the embedder supports it,
// falling back to one Embed call per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(texts) {
			return BatchEmbeddingResult{}, fmt.Errorf(
				"batch embed returned %d vectors for %d texts: %w",
				len(res.Embeddings), len(texts), ErrEmbeddingProviderError,
			)
		}
		return res, nil
	}

	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// QueryPassageEmbedder embeds a query together with the passages it will be ranked against,
// treating the two roles differently. Result index 0 is the query.
type QueryPassageEmbedder interface {
	EmbedAgainst(ctx context.Context, query string, passages []string) (BatchEmbeddingResult, error)
}

// EmbedAgainst returns the query vector and one vector per passage from a single provider round-trip.
func EmbedAgainst(ctx context.Context, e Embedder, query string, passages []string) ([]float32, [][]float32, error) {
	var (
		res BatchEmbeddingResult
		err error
	)
	if qp, ok := e.(QueryPassageEmbedder); ok {
		res, err = qp.EmbedAgainst(ctx, query, passages)
	} else {
		texts := make([]string, 0, len(passages)+1)
		texts = append(texts, query)
		texts = append(texts, passages...)
		res, err = EmbedAll(ctx, e, texts)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(res.Embeddings) != len(passages)+1 {
		return nil, nil, fmt.Errorf("got %d vectors for a query and %d passages: %w",
			len(res.Embeddings), len(passages), ErrEmbeddingProviderError)
	}
	return res.Embeddings[0], res.Embeddings[1:], nil
}

// InstructionEmbedder prefixes texts for asymmetric models (e5, bge, nomic), which expect
// one instruction on queries and another (often empty) on the passages being searched.
type InstructionEmbedder struct {
	inner   Embedder
	query   string
	passage string
}

// NewInstructionEmbedder wraps inner with query and passage prefixes. Either may be empty.
func NewInstructionEmbedder(inner Embedder, query, passage string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, query: query, passage: passage}
}

// Embed treats text as a query.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.query+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	return result, nil
}

// BatchEmbed treats texts as passages.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	res, err := EmbedAll(ctx, e.inner, e.prefixed(nil, texts))
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("embed passages: %w", err)
	}
	return res, nil
}

// EmbedAgainst prefixes the query and the passages with their own instructions, in one batch.
func (e *InstructionEmbedder) EmbedAgainst(ctx context.Context, query string, passages []string) (BatchEmbeddingResult, error) {
	res, err := EmbedAll(ctx, e.inner, e.prefixed([]string{e.query + query}, passages))
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("embed query and passages: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) prefixed(head, passages []string) []string {
	out := make([]string, 0, len(head)+len(passages))
	out = append(out, head...)
	for _, p := range passages {
		out = append(out, e.passage+p)
	}
	return out
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

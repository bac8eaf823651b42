package domain

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// recordingEmbedder returns a one-element vector holding len(text) and records every input.
type recordingEmbedder struct {
	texts []string
	err   error
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	if r.err != nil {
		return EmbeddingResult{}, r.err
	}
	r.texts = append(r.texts, text)
	return EmbeddingResult{Embedding: []float32{float32(len(text))}, PromptTokens: 2, TotalTokens: 3}, nil
}

type recordingBatchEmbedder struct {
	recordingEmbedder
	batches [][]string
	short   bool // answer with one vector too few
}

func (r *recordingBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	r.batches = append(r.batches, texts)
	n := len(texts)
	if r.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: n}, nil
}

func TestEmbedAll(t *testing.T) {
	t.Run("sequential fallback sums usage", func(t *testing.T) {
		inner := &recordingEmbedder{}
		res, err := EmbedAll(context.Background(), inner, []string{"a", "bb", "ccc"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 3 || res.Embeddings[2][0] != 3 {
			t.Errorf("Embeddings = %v", res.Embeddings)
		}
		if res.PromptTokens != 6 || res.TotalTokens != 9 {
			t.Errorf("usage = %d/%d, want 6/9", res.PromptTokens, res.TotalTokens)
		}
	})

	t.Run("sequential error wraps inner", func(t *testing.T) {
		fail := errors.New("fail")
		_, err := EmbedAll(context.Background(), &recordingEmbedder{err: fail}, []string{"a"})
		if !errors.Is(err, fail) {
			t.Fatalf("expected wrapped inner error, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		res, err := EmbedAll(context.Background(), &recordingEmbedder{}, nil)
		if err != nil || len(res.Embeddings) != 0 {
			t.Fatalf("got %v, %v", res.Embeddings, err)
		}
	})

	t.Run("batch preferred", func(t *testing.T) {
		inner := &recordingBatchEmbedder{}
		if _, err := EmbedAll(context.Background(), inner, []string{"a", "b"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(inner.batches) != 1 || len(inner.texts) != 0 {
			t.Errorf("batches = %v, single calls = %v", inner.batches, inner.texts)
		}
	})

	t.Run("batch count mismatch", func(t *testing.T) {
		inner := &recordingBatchEmbedder{short: true}
		_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
		if !errors.Is(err, ErrEmbeddingProviderError) {
			t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
		}
	})
}

func TestEmbedAgainst_PlainEmbedder(t *testing.T) {
	inner := &recordingBatchEmbedder{}
	query, passages, err := EmbedAgainst(context.Background(), inner, "revenue", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := [][]string{{"revenue", "p1", "p2"}}; !reflect.DeepEqual(inner.batches, want) {
		t.Errorf("batches = %v, want %v", inner.batches, want)
	}
	if query[0] != 0 || len(passages) != 2 || passages[1][0] != 2 {
		t.Errorf("query = %v, passages = %v", query, passages)
	}
}

func TestEmbedAgainst_CountMismatch(t *testing.T) {
	_, _, err := EmbedAgainst(context.Background(), &recordingBatchEmbedder{short: true}, "q", []string{"p"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestInstructionEmbedder_Roles(t *testing.T) {
	inner := &recordingBatchEmbedder{}
	e := NewInstructionEmbedder(inner, "query: ", "passage: ")

	if _, err := e.Embed(context.Background(), "what grew"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := e.BatchEmbed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if _, _, err := EmbedAgainst(context.Background(), e, "what grew", []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedAgainst: %v", err)
	}

	if want := []string{"query: what grew"}; !reflect.DeepEqual(inner.texts, want) {
		t.Errorf("single texts = %q, want %q", inner.texts, want)
	}
	want := [][]string{
		{"passage: a"},
		{"query: what grew", "passage: a", "passage: b"},
	}
	if !reflect.DeepEqual(inner.batches, want) {
		t.Errorf("batches = %q, want %q", inner.batches, want)
	}
}

func TestInstructionEmbedder_EmptyPrefixes(t *testing.T) {
	inner := &recordingEmbedder{}
	e := NewInstructionEmbedder(inner, "", "")
	if _, err := e.Embed(context.Background(), "test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.texts[0] != "test" {
		t.Errorf("got %q, want unchanged text", inner.texts[0])
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	fail := errors.New("provider down")
	e := NewInstructionEmbedder(&recordingEmbedder{err: fail}, "q: ", "")
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, fail) {
		t.Errorf("Embed: expected wrapped error, got %v", err)
	}
	if _, err := e.BatchEmbed(context.Background(), []string{"x"}); !errors.Is(err, fail) {
		t.Errorf("BatchEmbed: expected wrapped error, got %v", err)
	}
}

type healthEmbedder struct {
	recordingEmbedder
	healthErr error
}

func (h *healthEmbedder) HealthCheck(context.Context) error { return h.healthErr }

func TestInstructionEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("provider down")
	e := NewInstructionEmbedder(&healthEmbedder{healthErr: down}, "query: ", "")
	if err := e.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected inner health error, got %v", err)
	}

	plain := NewInstructionEmbedder(&recordingEmbedder{}, "query: ", "")
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("inner without health check should pass, got %v", err)
	}
}

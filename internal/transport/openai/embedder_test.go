package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// embeddingServer answers /embeddings with vecs, listed in the given index order.
func embeddingServer(t *testing.T, vecs map[int][]float32, order []int, check func(req map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}

		resp := openai.EmbeddingResponse{Object: "list", Usage: openai.Usage{PromptTokens: 7, TotalTokens: 7}}
		for _, i := range order {
			resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Embedding: vecs[i], Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testEmbedder(url string, dims int) *Embedder {
	return NewEmbedder(&Config{APIKey: "test-key", BaseURL: url, Model: "embed-small", Dimensions: dims, Provider: "test"})
}

func TestEmbedder_Embed(t *testing.T) {
	server := embeddingServer(t, map[int][]float32{0: {0.5, 0.5, 0, 0}}, []int{0}, func(req map[string]any) {
		if req["model"] != "embed-small" {
			t.Errorf("model = %v", req["model"])
		}
		if req["dimensions"] != float64(4) {
			t.Errorf("dimensions = %v, want 4", req["dimensions"])
		}
	})
	defer server.Close()

	res, err := testEmbedder(server.URL, 4).Embed(context.Background(), "quarterly revenue")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 4 || res.Embedding[0] != 0.5 {
		t.Errorf("Embedding = %v", res.Embedding)
	}
	if res.PromptTokens != 7 || res.TotalTokens != 7 {
		t.Errorf("usage = %d/%d, want 7/7", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedder_OmitsZeroDimensions(t *testing.T) {
	server := embeddingServer(t, map[int][]float32{0: {1}}, []int{0}, func(req map[string]any) {
		if _, ok := req["dimensions"]; ok {
			t.Errorf("dimensions sent without being configured: %v", req["dimensions"])
		}
	})
	defer server.Close()

	if _, err := testEmbedder(server.URL, 0).Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
}

func TestEmbedder_BatchEmbed_RestoresInputOrder(t *testing.T) {
	vecs := map[int][]float32{0: {1, 0}, 1: {0, 1}, 2: {1, 1}}
	server := embeddingServer(t, vecs, []int{2, 0, 1}, nil)
	defer server.Close()

	res, err := testEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	for i, v := range res.Embeddings {
		if v[0] != vecs[i][0] || v[1] != vecs[i][1] {
			t.Errorf("Embeddings[%d] = %v, want %v", i, v, vecs[i])
		}
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	res, err := testEmbedder("http://unused", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected no embeddings, got %v", res.Embeddings)
	}
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
				})
			},
			want: domain.ErrRateLimited,
		},
		{
			name: "bad gateway",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"detail":"upstream model unavailable"}`))
			},
			want: domain.ErrEmbeddingProviderError,
		},
		{
			name: "vector count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(openai.EmbeddingResponse{
					Object: "list",
					Data:   []openai.Embedding{{Object: "embedding", Embedding: []float32{1}, Index: 0}},
				})
			},
			want: domain.ErrEmbeddingProviderError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := testEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	if err := testEmbedder(server.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

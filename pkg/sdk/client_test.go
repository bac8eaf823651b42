package docingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_NoDatabase(t *testing.T) {
	_, err := New(context.Background(), WithFSObjects(t.TempDir()), WithSummarizer(&stubSummarizer{}))
	if err == nil {
		t.Fatal("expected error when no database configured")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no database", []Option{WithFSObjects("/tmp"), WithSummarizer(&stubSummarizer{})}, "database required"},
		{"no objects", []Option{WithSQLite("x.db"), WithSummarizer(&stubSummarizer{})}, "object store required"},
		{"no summarizer", []Option{WithSQLite("x.db"), WithFSObjects("/tmp")}, "summarizer required"},
		{
			"inverted text limits",
			[]Option{WithSQLite("x.db"), WithFSObjects("/tmp"), WithSummarizer(&stubSummarizer{}), WithTextLimits(100, 10)},
			"exceeds max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &clientConfig{}
			for _, o := range tt.opts {
				o.apply(cfg)
			}
			err := cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := openBackend(context.Background(), &clientConfig{driver: "unknown"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{
				Embedding:    []float32{1, 2, 3},
				PromptTokens: 5,
				TotalTokens:  10,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	result, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_BatchFallback(t *testing.T) {
	calls := 0
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			calls++
			return EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	res, err := adapter.BatchEmbed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(res.Embeddings) != 3 || res.Embeddings[2][0] != 3 {
		t.Errorf("Embeddings = %v", res.Embeddings)
	}
	if res.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d, want 3", res.TotalTokens)
	}
}

func TestEmbedderAdapter_BatchFallback_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			if text == "bad" {
				return EmbeddingResult{}, errors.New("provider down")
			}
			return EmbeddingResult{Embedding: []float32{1}}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	if _, err := adapter.BatchEmbed(context.Background(), []string{"ok", "bad"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedderAdapter_NativeBatch(t *testing.T) {
	mock := &mockBatchEmbedder{
		mockEmbedder: mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
			t.Error("single Embed should not be called")
			return EmbeddingResult{}, nil
		}},
		batchFn: func(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0}
			}
			return BatchEmbeddingResult{Embeddings: out, PromptTokens: 4, TotalTokens: 4}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	res, err := adapter.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.PromptTokens != 4 {
		t.Errorf("res = %+v", res)
	}
}

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), nil)
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := newObserver(slog.New(slog.DiscardHandler), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.observe("submit", time.Now(), nil)
	o.observe("submit", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "docingest_sdk_operations_total" {
			continue
		}
		found = true
		if len(mf.GetMetric()) != 2 {
			t.Errorf("series = %d, want 2 (ok, error)", len(mf.GetMetric()))
		}
	}
	if !found {
		t.Error("docingest_sdk_operations_total not registered")
	}

	// A second client on the same registry reuses the collectors.
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second observer: %v", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("get: %w", ErrDocumentNotFound), "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrUnsupportedFormat, "rejected"},
		{ErrInvalidTransition, "rejected"},
		{ErrOverloaded, "unavailable"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type checkedStore struct{ err error }

func (s *checkedStore) Fetch(context.Context, string) ([]byte, error) { return nil, nil }
func (s *checkedStore) HealthCheck(context.Context) error           { return s.err }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestNewHealthService_OnlyCheckersIncluded(t *testing.T) {
	svc := newHealthService(okPinger{}, map[string]any{
		"object_store": &checkedStore{err: errors.New("bucket gone")},
		"summarizer":   &stubSummarizer{},
		"embedding":    nil,
	})
	c := &Client{healthSvc: svc}

	h := c.Health(context.Background())
	if h.Healthy() {
		t.Fatal("expected unhealthy status")
	}
	if h.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", h.Status)
	}
	if h.Checks["object_store"] != "error" || h.Checks["database"] != "ok" {
		t.Errorf("Checks = %v", h.Checks)
	}
	if _, ok := h.Checks["summarizer"]; ok {
		t.Error("summarizer without HealthCheck should not be checked")
	}
}

func TestSegment(t *testing.T) {
	segs := Segment(strings.Repeat("a", 250), 20)
	if len(segs) != 13 {
		t.Fatalf("len = %d, want 13", len(segs))
	}
	if Segment("", 20) != nil {
		t.Error("empty text should yield no segments")
	}
}

func TestSelect(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{0, 1}, {1, 0}, {0.9, 0.1}}

	got := Select(query, candidates, 2, 1)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Select = %v, want [1 2]", got)
	}
	if got := Select(query, candidates, 0, 0.7); len(got) != 0 {
		t.Errorf("k=0: got %v, want empty", got)
	}
}

func TestClient_EndToEnd_SQLite(t *testing.T) {
	root := t.TempDir()
	body := "Quarterly report.\nRevenue grew twelve percent on strong demand.\n"
	if err := os.WriteFile(filepath.Join(root, "q3.txt"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := New(ctx,
		WithSQLite(filepath.Join(t.TempDir(), "docingest.db")),
		WithFSObjects(root),
		WithSummarizer(&stubSummarizer{summary: "Revenue up 12%."}),
		WithWorkers(2),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if created, err := client.RegisterOwner(ctx, 42); err != nil || !created {
		t.Fatalf("RegisterOwner: created=%v err=%v", created, err)
	}

	docs := client.Documents(42)
	doc, err := docs.Submit(ctx, SubmitRequest{StorageKey: "q3.txt", Filename: "q3.txt", ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if doc.Status != StatusNone {
		t.Fatalf("Status = %q, want none", doc.Status)
	}

	if _, err := docs.Process(ctx, doc.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	doc, err = docs.Wait(ctx, doc.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if doc.Status != StatusDone {
		t.Fatalf("Status = %q (error %q), want done", doc.Status, doc.ErrorMessage)
	}
	if doc.Summary != "Revenue up 12%." {
		t.Errorf("Summary = %q", doc.Summary)
	}
	if !strings.Contains(doc.Text, "Revenue grew") {
		t.Errorf("Text = %q", doc.Text)
	}

	if _, err := client.Documents(43).Get(ctx, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign owner: expected ErrForbidden, got %v", err)
	}

	list, err := docs.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Documents) != 1 || list.NextCursor != "" {
		t.Errorf("List = %+v", list)
	}

	if _, err := docs.Context(ctx, doc.ID, ContextQuery{Text: "revenue"}); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Context without embedder: expected ErrNotImplemented, got %v", err)
	}
}

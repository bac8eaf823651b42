package docingest

import (
	"context"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

// --- ingestionUseCase mock ---

type mockIngestionUC struct {
	submitFn  func(ctx context.Context, in ingestionuc.SubmitInput) (domdoc.Document, error)
	processFn func(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	getFn     func(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	listFn    func(ctx context.Context, ownerID int64, cursor string, limit int) ([]domdoc.Document, string, error)
}

func (m *mockIngestionUC) Submit(ctx context.Context, in ingestionuc.SubmitInput) (domdoc.Document, error) {
	return m.submitFn(ctx, in)
}

func (m *mockIngestionUC) RequestProcessing(ctx context.Context, id string, ownerID int64) (domdoc.Document, error) {
	return m.processFn(ctx, id, ownerID)
}

func (m *mockIngestionUC) GetStatus(ctx context.Context, id string, ownerID int64) (domdoc.Document, error) {
	return m.getFn(ctx, id, ownerID)
}

func (m *mockIngestionUC) List(
	ctx context.Context, ownerID int64, cursor string, limit int,
) ([]domdoc.Document, string, error) {
	return m.listFn(ctx, ownerID, cursor, limit)
}

// --- ownerUseCase mock ---

type mockOwnerUC struct {
	registerFn func(ctx context.Context, id int64) (domowner.Owner, bool, error)
}

func (m *mockOwnerUC) Register(ctx context.Context, id int64) (domowner.Owner, bool, error) {
	return m.registerFn(ctx, id)
}

// --- retrievalUseCase mock ---

type mockRetrievalUC struct {
	buildFn func(ctx context.Context, id string, ownerID int64, q retrievaluc.Query) ([]retrievaluc.Chunk, error)
}

func (m *mockRetrievalUC) BuildContext(
	ctx context.Context, id string, ownerID int64, q retrievaluc.Query,
) ([]retrievaluc.Chunk, error) {
	return m.buildFn(ctx, id, ownerID, q)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- public provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type stubSummarizer struct {
	summary string
	err     error
}

func (s *stubSummarizer) Summarize(context.Context, string) (string, error) {
	return s.summary, s.err
}

func testDocument(id string, status domdoc.Status) domdoc.Document {
	s := domdoc.Snapshot{
		ID:          id,
		OwnerID:     7,
		StorageKey:  "uploads/" + id + ".txt",
		Filename:    id + ".txt",
		ContentType: "text/plain",
		Status:      status,
		Revision:    3,
	}
	switch status {
	case domdoc.StatusDone:
		s.Text = "full text"
		s.Summary = "short"
	case domdoc.StatusError:
		s.ErrorMessage = "extraction failed"
	}
	return domdoc.Reconstruct(s)
}

package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

const testOwner int64 = 42

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDocument(id string, status domdoc.Status) domdoc.Document {
	snap := domdoc.Snapshot{
		ID:          id,
		OwnerID:     testOwner,
		StorageKey:  "uploads/" + id + ".pdf",
		Filename:    id + ".pdf",
		ContentType: "application/pdf",
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
		Status:      status,
		Revision:    3,
	}
	switch status {
	case domdoc.StatusDone:
		snap.Text = "full text"
		snap.Summary = "short summary"
	case domdoc.StatusError:
		snap.ErrorMessage = "extraction failed"
	}
	return domdoc.Reconstruct(snap)
}

// --- mockIngestion ---

type mockIngestion struct {
	submitted  []ingestionuc.SubmitInput
	submitErr  error
	processErr error
	statusErr  error
	listErr    error
	docs       []domdoc.Document
	next       string
	listCursor string
	listLimit  int
	lastOwner  int64
}

func (m *mockIngestion) Submit(_ context.Context, in ingestionuc.SubmitInput) (domdoc.Document, error) {
	m.submitted = append(m.submitted, in)
	if m.submitErr != nil {
		return domdoc.Document{}, m.submitErr
	}
	return testDocument("doc-1", domdoc.StatusNone), nil
}

func (m *mockIngestion) RequestProcessing(_ context.Context, id string, ownerID int64) (domdoc.Document, error) {
	m.lastOwner = ownerID
	if m.processErr != nil {
		return domdoc.Document{}, m.processErr
	}
	return testDocument(id, domdoc.StatusPending), nil
}

func (m *mockIngestion) GetStatus(_ context.Context, id string, ownerID int64) (domdoc.Document, error) {
	m.lastOwner = ownerID
	if m.statusErr != nil {
		return domdoc.Document{}, m.statusErr
	}
	return testDocument(id, domdoc.StatusDone), nil
}

func (m *mockIngestion) List(_ context.Context, ownerID int64, cursor string, limit int) (
	[]domdoc.Document, string, error,
) {
	m.lastOwner = ownerID
	m.listCursor = cursor
	m.listLimit = limit
	if m.listErr != nil {
		return nil, "", m.listErr
	}
	return m.docs, m.next, nil
}

// --- mockOwners ---

type mockOwners struct {
	registered []int64
	err        error
}

func (m *mockOwners) Register(_ context.Context, id int64) (domowner.Owner, bool, error) {
	if m.err != nil {
		return domowner.Owner{}, false, m.err
	}
	m.registered = append(m.registered, id)
	return domowner.Reconstruct(id, testTime), true, nil
}

// --- mockRetrieval ---

type mockRetrieval struct {
	chunks []retrievaluc.Chunk
	err    error
	last   retrievaluc.Query
}

func (m *mockRetrieval) BuildContext(_ context.Context, _ string, _ int64, q retrievaluc.Query) (
	[]retrievaluc.Chunk, error,
) {
	m.last = q
	return m.chunks, m.err
}

// --- mockHealth ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- fixture ---

type fixture struct {
	ingestion *mockIngestion
	owners    *mockOwners
	retrieval *mockRetrieval
	health    *mockHealth
	handler   http.Handler
}

func newFixture(t *testing.T, apiKeys ...string) *fixture {
	t.Helper()
	f := &fixture{
		ingestion: &mockIngestion{},
		owners:    &mockOwners{},
		retrieval: &mockRetrieval{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	srv := NewServer(f.ingestion, f.owners, f.retrieval, f.health, SelectorConfig{Lambda: 0.7}, zap.NewNop())
	f.handler = NewRouter(srv, apiKeys, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) asOwner(method, path, body string) *httptest.ResponseRecorder {
	return f.do(method, path, body, OwnerHeader, "42")
}

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/docingest/internal/domain"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// --- Mocks ---

// memRepo keeps snapshots and enforces revision checks like the real stores.
type memRepo struct {
	mu        sync.Mutex
	docs      map[string]domdoc.Snapshot
	order     []string
	getErr    error
	saveErr   error
	conflicts int // number of upcoming Saves that report a conflict
	saves     int
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[string]domdoc.Snapshot)}
}

func (m *memRepo) Create(_ context.Context, doc *domdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID()]; ok {
		return domain.NewRevisionConflict(1)
	}
	doc.SetRevision(1)
	m.docs[doc.ID()] = doc.Snapshot()
	m.order = append(m.order, doc.ID())
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domdoc.Document{}, m.getErr
	}
	snap, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return domdoc.Reconstruct(snap), nil
}

func (m *memRepo) Save(_ context.Context, doc *domdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.docs[doc.ID()]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		cur.Revision++
		m.docs[doc.ID()] = cur
		return domain.NewRevisionConflict(cur.Revision)
	}
	if cur.Revision != doc.Revision() {
		return domain.NewRevisionConflict(cur.Revision)
	}
	doc.SetRevision(cur.Revision + 1)
	m.docs[doc.ID()] = doc.Snapshot()
	return nil
}

func (m *memRepo) List(_ context.Context, ownerID int64, _ string, limit int) ([]domdoc.Document, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domdoc.Document
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		snap := m.docs[m.order[i]]
		if snap.OwnerID == ownerID {
			out = append(out, domdoc.Reconstruct(snap))
		}
	}
	return out, "", nil
}

func (m *memRepo) ListInFlight(_ context.Context) ([]domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domdoc.Document
	for _, id := range m.order {
		if snap := m.docs[id]; snap.Status.IsInFlight() {
			out = append(out, domdoc.Reconstruct(snap))
		}
	}
	return out, nil
}

func (m *memRepo) snapshot(t *testing.T, id string) domdoc.Snapshot {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.docs[id]
	if !ok {
		t.Fatalf("document %s not stored", id)
	}
	return snap
}

type mockOwners struct {
	known map[int64]bool
	err   error
}

func (m *mockOwners) Exists(_ context.Context, id int64) (bool, error) {
	return m.known[id], m.err
}

type mockObjects struct {
	data map[string][]byte
	err  error
}

func (m *mockObjects) Fetch(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return b, nil
}

type mockExtractor struct {
	fn          func(data []byte) (string, error)
	unsupported map[string]bool
}

func (m *mockExtractor) Extract(_ context.Context, _, _ string, data []byte) (string, error) {
	if m.fn != nil {
		return m.fn(data)
	}
	return string(data), nil
}

func (m *mockExtractor) Supports(contentType, _ string) bool {
	return !m.unsupported[contentType]
}

type mockSummarizer struct {
	mu     sync.Mutex
	result string
	err    error
	calls  int
	hook   func()
	hang   bool // block until ctx is done
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls++
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if m.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if m.result != "" {
		return m.result, nil
	}
	if len(text) > 20 {
		text = text[:20]
	}
	return "summary of " + text, nil
}

// queueScheduler holds tasks until the test runs them.
type queueScheduler struct {
	mu    sync.Mutex
	tasks []func()
	err   error
}

func (q *queueScheduler) Schedule(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueScheduler) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

func (q *queueScheduler) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// --- Helpers ---

type fixture struct {
	svc        *Service
	repo       *memRepo
	objects    *mockObjects
	extractor  *mockExtractor
	summarizer *mockSummarizer
	sched      *queueScheduler
}

const testOwner int64 = 42

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       newMemRepo(),
		objects:    &mockObjects{data: map[string][]byte{}},
		extractor:  &mockExtractor{},
		summarizer: &mockSummarizer{},
		sched:      &queueScheduler{},
	}
	owners := &mockOwners{known: map[int64]bool{testOwner: true, 7: true}}
	f.svc = New(f.repo, owners, f.objects, f.extractor, f.summarizer, f.sched,
		Config{MaxTextLength: 100, MinTextLength: 10, WorkerTimeout: time.Second}, nil)

	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("doc-%d", seq)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return f
}

func (f *fixture) submit(t *testing.T, key, content string) domdoc.Document {
	t.Helper()
	f.objects.data[key] = []byte(content)
	doc, err := f.svc.Submit(context.Background(), SubmitInput{
		OwnerID: testOwner, StorageKey: key, Filename: key, ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return doc
}

func (f *fixture) status(t *testing.T, id string) *domdoc.Document {
	t.Helper()
	doc, err := f.svc.GetStatus(context.Background(), id, testOwner)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	return &doc
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// Package ingestion drives documents through extraction and summarization off the request path.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/domain"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	"github.com/kailas-cloud/docingest/internal/logger"
	"github.com/kailas-cloud/docingest/internal/metrics"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultMaxTextLength = 500_000
	DefaultMinTextLength = 10
	DefaultWorkerTimeout = 5 * time.Minute

	// InterruptedMessage is recorded on documents whose worker died with the process.
	InterruptedMessage = "processing interrupted"
	// OverloadedMessage is recorded when no worker could accept the attempt.
	OverloadedMessage = "worker pool overloaded"

	maxSaveAttempts  = 3
	failWriteTimeout = 10 * time.Second
)

// Config tunes the pipeline.
type Config struct {
	MaxTextLength int
	MinTextLength int
	WorkerTimeout time.Duration
}

// SubmitInput describes an uploaded document.
type SubmitInput struct {
	OwnerID     int64
	StorageKey  string
	Filename    string
	ContentType string
}

// Service owns the document state machine.
type Service struct {
	repo       Repository
	owners     OwnerChecker
	objects    ObjectStore
	extractor  Extractor
	summarizer Summarizer
	scheduler  Scheduler
	cfg        Config
	logger     *zap.Logger

	now             func() time.Time
	newID           func() string
	defaultPageSize int
	maxPageSize     int
}

// New creates an ingestion service.
func New(
	repo Repository, owners OwnerChecker, objects ObjectStore,
	extractor Extractor, summarizer Summarizer, scheduler Scheduler,
	cfg Config, log *zap.Logger,
) *Service {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = DefaultWorkerTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:            repo,
		owners:          owners,
		objects:         objects,
		extractor:       extractor,
		summarizer:      summarizer,
		scheduler:       scheduler,
		cfg:             cfg,
		logger:          log,
		now:             time.Now,
		newID:           uuid.NewString,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Submit registers a new document in state none.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domdoc.Document, error) {
	ok, err := s.owners.Exists(ctx, in.OwnerID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("check owner: %w", err)
	}
	if !ok {
		return domdoc.Document{}, fmt.Errorf("owner %d: %w", in.OwnerID, domain.ErrOwnerNotFound)
	}
	if fc, ok := s.extractor.(FormatChecker); ok && !fc.Supports(in.ContentType, in.Filename) {
		return domdoc.Document{}, fmt.Errorf("content type %q: %w", in.ContentType, domain.ErrUnsupportedFormat)
	}

	doc, err := domdoc.New(s.newID(), in.OwnerID, in.StorageKey, in.Filename, in.ContentType, s.now())
	if err != nil {
		return domdoc.Document{}, err
	}
	if err := s.repo.Create(ctx, &doc); err != nil {
		return domdoc.Document{}, fmt.Errorf("create document: %w", err)
	}

	metrics.DocumentsSubmittedTotal.Inc()
	logger.FromContext(ctx).Info("Document submitted",
		zap.String("document_id", doc.ID()),
		zap.Int64("owner_id", doc.OwnerID()),
		zap.String("content_type", doc.ContentType()),
	)
	return doc, nil
}

// RequestProcessing moves the document to pending and schedules a worker.
// It returns as soon as the pending state is stored.
func (s *Service) RequestProcessing(ctx context.Context, id string, ownerID int64) (domdoc.Document, error) {
	var attempt int64
	doc, err := s.update(ctx, id, func(d *domdoc.Document) error {
		if !d.OwnedBy(ownerID) {
			return fmt.Errorf("document %s: %w", id, domain.ErrForbidden)
		}
		attempt = d.MarkPending(s.now())
		return nil
	})
	if err != nil {
		return domdoc.Document{}, err
	}

	wctx := context.WithoutCancel(ctx)
	if err := s.scheduler.Schedule(func() { s.process(wctx, id, attempt) }); err != nil {
		metrics.ProcessingRequestsTotal.WithLabelValues("overloaded").Inc()
		logger.FromContext(ctx).Warn("Worker rejected processing request",
			zap.String("document_id", id),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		s.failAttempt(ctx, id, attempt, OverloadedMessage)
		return domdoc.Document{}, fmt.Errorf("schedule document %s: %w", id, err)
	}

	metrics.ProcessingRequestsTotal.WithLabelValues("accepted").Inc()
	return doc, nil
}

// GetStatus returns the current snapshot of a document owned by ownerID.
func (s *Service) GetStatus(ctx context.Context, id string, ownerID int64) (domdoc.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	if !doc.OwnedBy(ownerID) {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrForbidden)
	}
	return doc, nil
}

// List returns a page of an owner's documents, newest first.
func (s *Service) List(ctx context.Context, ownerID int64, cursor string, limit int) (
	[]domdoc.Document, string, error,
) {
	if ownerID <= 0 {
		return nil, "", fmt.Errorf("owner id must be positive: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	docs, next, err := s.repo.List(ctx, ownerID, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, next, nil
}

// RecoverInterrupted fails every document left pending or processing by a previous process.
// Call it once at startup, before the first worker is scheduled.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	docs, err := s.repo.ListInFlight(ctx)
	if err != nil {
		return 0, fmt.Errorf("list in-flight documents: %w", err)
	}

	recovered := 0
	for _, d := range docs {
		_, err := s.update(ctx, d.ID(), func(doc *domdoc.Document) error {
			return doc.Interrupt(InterruptedMessage, s.now())
		})
		switch {
		case err == nil:
			recovered++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			continue
		default:
			return recovered, fmt.Errorf("recover document %s: %w", d.ID(), err)
		}
	}

	metrics.RecoveredDocumentsTotal.Add(float64(recovered))
	if recovered > 0 {
		s.logger.Warn("Recovered interrupted documents", zap.Int("count", recovered))
	}
	return recovered, nil
}

// process is the worker body for one attempt.
func (s *Service) process(ctx context.Context, id string, attempt int64) {
	start := s.now()
	metrics.WorkersInFlight.Inc()
	defer metrics.WorkersInFlight.Dec()

	log := logger.FromContext(ctx).With(zap.String("document_id", id), zap.Int64("attempt", attempt))
	ctx = logger.ContextWithLogger(ctx, log)

	var status string
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panicked", zap.Any("panic", r), zap.Stack("stack"))
			status = "superseded"
			if s.failAttempt(ctx, id, attempt, "internal error") {
				status = string(domdoc.StatusError)
			}
		}
		elapsed := s.now().Sub(start)
		metrics.DocumentsProcessedTotal.WithLabelValues(status).Inc()
		metrics.ProcessingDuration.WithLabelValues(status).Observe(elapsed.Seconds())
		log.Info("Document processing finished", zap.String("status", status), zap.Duration("duration", elapsed))
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.WorkerTimeout)
	defer cancel()

	err := s.run(runCtx, id, attempt)
	switch {
	case err == nil:
		status = string(domdoc.StatusDone)
	case errors.Is(err, domain.ErrInvalidTransition):
		status = "superseded"
		log.Debug("Attempt superseded", zap.Error(err))
	default:
		log.Warn("Document processing failed", zap.Error(err))
		if s.failAttempt(ctx, id, attempt, err.Error()) {
			status = string(domdoc.StatusError)
		} else {
			status = "superseded"
		}
	}
}

func (s *Service) run(ctx context.Context, id string, attempt int64) error {
	doc, err := s.update(ctx, id, func(d *domdoc.Document) error {
		return d.StartProcessing(attempt, s.now())
	})
	if err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	data, err := s.objects.Fetch(ctx, doc.StorageKey())
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	text, err := s.extractor.Extract(ctx, doc.ContentType(), doc.Filename(), data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < s.cfg.MinTextLength {
		return fmt.Errorf("extracted text too short (%d < %d characters): %w",
			n, s.cfg.MinTextLength, domain.ErrExtractionFailure)
	}
	text = domdoc.TruncateText(text, s.cfg.MaxTextLength)

	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fmt.Errorf("summarizer returned empty text: %w", domain.ErrSummarizationFailure)
	}

	if _, err := s.update(ctx, id, func(d *domdoc.Document) error {
		return d.Complete(attempt, text, summary, s.cfg.MaxTextLength, s.now())
	}); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

// failAttempt records a terminal error for the attempt on a fresh context,
// so an expired worker deadline cannot block the write.
// It returns false when the attempt was superseded or the write failed.
func (s *Service) failAttempt(ctx context.Context, id string, attempt int64, message string) bool {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	_, err := s.update(wctx, id, func(d *domdoc.Document) error {
		return d.Fail(attempt, message, s.now())
	})
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		logger.FromContext(ctx).Error("Failed to record processing error",
			zap.String("document_id", id),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
	}
	return false
}

// update applies mutate to the stored document and saves it with a revision check,
// reloading and retrying on concurrent writes.
func (s *Service) update(
	ctx context.Context, id string, mutate func(*domdoc.Document) error,
) (domdoc.Document, error) {
	for try := 1; ; try++ {
		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return domdoc.Document{}, fmt.Errorf("get document: %w", err)
		}
		if err := mutate(&doc); err != nil {
			return domdoc.Document{}, err
		}
		err = s.repo.Save(ctx, &doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, domain.ErrRevisionConflict) || try >= maxSaveAttempts {
			return domdoc.Document{}, fmt.Errorf("save document: %w", err)
		}
	}
}

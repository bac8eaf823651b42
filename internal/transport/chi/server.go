package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	"github.com/kailas-cloud/docingest/internal/domain/search/mmr"
	"github.com/kailas-cloud/docingest/internal/logger"
	"github.com/kailas-cloud/docingest/internal/metrics"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

// OwnerHeader carries the caller's owner identity.
const OwnerHeader = "X-Owner-ID"

const maxRequestBodyBytes = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// SelectorConfig holds the defaults for /segment and /select.
type SelectorConfig struct {
	ChunkTargetLength int
	K                 int
	Lambda            float64
}

// Server serves the docingest HTTP API.
type Server struct {
	ingestion     IngestionService
	owners        OwnerService
	retrieval     RetrievalService
	health        HealthService
	selector      SelectorConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. A nil retrieval service disables /documents/{id}/context.
func NewServer(
	ingestion IngestionService,
	owners OwnerService,
	retrieval RetrievalService,
	health HealthService,
	selector SelectorConfig,
	log *zap.Logger,
) *Server {
	if selector.ChunkTargetLength <= 0 {
		selector.ChunkTargetLength = chunk.DefaultTargetLength
	}
	if selector.K <= 0 {
		selector.K = mmr.DefaultK
	}
	s := &Server{
		ingestion: ingestion,
		owners:    owners,
		retrieval: retrieval,
		health:    health,
		selector:  selector,
		logger:    log,
	}
	s.errorHandlers = []errorHandler{
		revisionConflictHandler,
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrOwnerNotFound, http.StatusNotFound, codeOwnerNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, codeInvalidState),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrOverloaded, http.StatusServiceUnavailable, codeOverloaded),
		sentinelHandler(domain.ErrTransientIO, http.StatusServiceUnavailable, codeUnavailable),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, codeNotImplemented),
		sentinelHandler(domain.ErrSummarizationFailure, http.StatusBadGateway, codeSummarizationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Put("/owners/{owner}", s.RegisterOwner)
		r.Post("/segment", s.Segment)
		r.Post("/select", s.Select)

		r.Group(func(r chirouter.Router) {
			r.Use(requireOwner)
			r.Post("/documents", s.SubmitDocument)
			r.Get("/documents", s.ListDocuments)
			r.Get("/documents/{id}", s.GetDocument)
			r.Post("/documents/{id}/process", s.ProcessDocument)
			r.Post("/documents/{id}/context", s.DocumentContext)
		})
	})
}

// RegisterOwner handles PUT /api/v1/owners/{owner}.
func (s *Server) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	id, err := parseOwnerID(chirouter.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if _, _, err := s.owners.Register(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitDocument handles POST /api/v1/documents.
func (s *Server) SubmitDocument(w http.ResponseWriter, r *http.Request) {
	var req submitDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StorageKey) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "storage_key is required")
		return
	}

	doc, err := s.ingestion.Submit(r.Context(), ingestionuc.SubmitInput{
		OwnerID:     ownerFromContext(r.Context()),
		StorageKey:  req.StorageKey,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeDocument(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	docs, next, err := s.ingestion.List(r.Context(), ownerFromContext(r.Context()), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToResponse(docs[i])
	}
	resp := documentListResponse{Items: items, HasMore: next != ""}
	if next != "" {
		resp.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.GetStatus(r.Context(), chirouter.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

// ProcessDocument handles POST /api/v1/documents/{id}/process.
func (s *Server) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.RequestProcessing(r.Context(), chirouter.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeDocument(w, http.StatusAccepted, doc)
}

// DocumentContext handles POST /api/v1/documents/{id}/context.
func (s *Server) DocumentContext(w http.ResponseWriter, r *http.Request) {
	if s.retrieval == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "context retrieval requires an embedding provider")
		return
	}
	var req contextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.K != nil && *req.K <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "k must be positive")
		return
	}

	chunks, err := s.retrieval.BuildContext(r.Context(), chirouter.URLParam(r, "id"), ownerFromContext(r.Context()),
		retrievaluc.Query{Text: req.Query, K: req.K, Lambda: req.Lambda})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]chunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkResponse{Index: c.Index, Text: c.Text, Relevance: c.Relevance}
	}
	writeJSON(w, http.StatusOK, contextResponse{Chunks: items})
}

// Segment handles POST /api/v1/segment.
func (s *Server) Segment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target := s.selector.ChunkTargetLength
	if req.TargetLength != nil {
		if *req.TargetLength <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "target_length must be positive")
			return
		}
		target = *req.TargetLength
	}
	segments := chunk.Split(req.Text, target)
	if segments == nil {
		segments = []string{}
	}
	writeJSON(w, http.StatusOK, segmentResponse{Segments: segments})
}

// Select handles POST /api/v1/select.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	k := s.selector.K
	if req.K != nil {
		k = *req.K
	}
	lambda := s.selector.Lambda
	if req.Lambda != nil {
		lambda = *req.Lambda
	}
	writeJSON(w, http.StatusOK, selectResponse{Indices: mmr.Select(req.Query, req.Candidates, k, lambda)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseOwnerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("owner id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func writeDocument(w http.ResponseWriter, status int, doc domdoc.Document) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(doc.Revision(), 10)))
	writeJSON(w, status, documentToResponse(doc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// detailedSentinels are client-caused errors whose full message is safe to return.
var detailedSentinels = []error{
	domain.ErrInvalidInput,
	domain.ErrUnsupportedFormat,
	domain.ErrInvalidTransition,
}

// safeSentinels are reported by their sentinel text only.
var safeSentinels = []error{
	domain.ErrDocumentNotFound,
	domain.ErrOwnerNotFound,
	domain.ErrNotFound,
	domain.ErrForbidden,
	domain.ErrRevisionConflict,
	domain.ErrRateLimited,
	domain.ErrOverloaded,
	domain.ErrTransientIO,
	domain.ErrNotImplemented,
	domain.ErrSummarizationFailure,
	domain.ErrEmbeddingProviderError,
}

func safeDomainMessage(err error) string {
	for _, s := range detailedSentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	for _, s := range safeSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func revisionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRevisionConflict) {
		return false
	}
	var rce *domain.RevisionConflictError
	if errors.As(err, &rce) {
		w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(rce.CurrentRevision, 10)))
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":             codeRevisionConflict,
			"message":          msg,
			"current_revision": rce.CurrentRevision,
		})
		return true
	}
	writeError(w, http.StatusConflict, codeRevisionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

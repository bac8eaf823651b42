package docingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/docingest/internal/db/redis"
	"github.com/kailas-cloud/docingest/internal/db/sqlite"
	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
	"github.com/kailas-cloud/docingest/internal/domain/search/mmr"
	"github.com/kailas-cloud/docingest/internal/extract"
	fsstore "github.com/kailas-cloud/docingest/internal/objectstore/fs"
	documentrepo "github.com/kailas-cloud/docingest/internal/repository/document"
	ownerrepo "github.com/kailas-cloud/docingest/internal/repository/owner"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	owneruc "github.com/kailas-cloud/docingest/internal/usecase/owner"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
	summarizeuc "github.com/kailas-cloud/docingest/internal/usecase/summarize"
	"github.com/kailas-cloud/docingest/internal/worker"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultWorkers          = 4
	releaseTimeout          = 30 * time.Second
)

// Internal interfaces, swapped for mocks in tests.
type ingestionUseCase interface {
	Submit(ctx context.Context, in ingestionuc.SubmitInput) (domdoc.Document, error)
	RequestProcessing(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	GetStatus(ctx context.Context, id string, ownerID int64) (domdoc.Document, error)
	List(ctx context.Context, ownerID int64, cursor string, limit int) ([]domdoc.Document, string, error)
}

type ownerUseCase interface {
	Register(ctx context.Context, id int64) (domowner.Owner, bool, error)
}

type retrievalUseCase interface {
	BuildContext(ctx context.Context, id string, ownerID int64, q retrievaluc.Query) ([]retrievaluc.Chunk, error)
}

// backend is an opened document database.
type backend struct {
	documents ingestionuc.Repository
	owners    owneruc.Repository
	pinger    healthuc.DBPinger
	close     func()
}

// Client is the docingest SDK entry point.
type Client struct {
	backend   *backend
	pool      *worker.Pool
	ingestion ingestionUseCase
	owners    ownerUseCase
	retrieval retrievalUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the database and marks documents left in flight
// by a previous process as failed. The provided context is used for startup only.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	objects := cfg.objects
	if objects == nil {
		s, err := fsstore.New(cfg.objectRoot, cfg.maxObjectBytes)
		if err != nil {
			return nil, fmt.Errorf("docingest: open object root: %w", err)
		}
		objects = s
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		b.close()
		return nil, err
	}

	c, err := wireClient(ctx, b, objects, cfg, obs)
	if err != nil {
		b.close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	if cfg.driver == "" {
		return errors.New("docingest: database required (use WithValkey, WithRedis or WithSQLite)")
	}
	if cfg.objects == nil && cfg.objectRoot == "" {
		return errors.New("docingest: object store required (use WithFSObjects or WithObjectStore)")
	}
	if cfg.summarizer == nil {
		return errors.New("docingest: summarizer required (use WithSummarizer)")
	}
	if cfg.maxTextLength > 0 && cfg.minTextLength > cfg.maxTextLength {
		return fmt.Errorf("docingest: min text length %d exceeds max %d", cfg.minTextLength, cfg.maxTextLength)
	}
	return nil
}

func openBackend(ctx context.Context, cfg *clientConfig) (*backend, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("docingest: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("docingest: database not ready: %w", err)
		}
		return &backend{
			documents: documentrepo.New(s, cfg.keyPrefix),
			owners:    ownerrepo.New(s, cfg.keyPrefix),
			pinger:    s,
			close:     s.Close,
		}, nil
	case "sqlite":
		d, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.sqlitePath})
		if err != nil {
			return nil, fmt.Errorf("docingest: open sqlite: %w", err)
		}
		return &backend{
			documents: documentrepo.NewSQL(d),
			owners:    ownerrepo.NewSQL(d),
			pinger:    d,
			close:     d.Close,
		}, nil
	default:
		return nil, fmt.Errorf("docingest: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	ctx context.Context, b *backend, objects ObjectStore, cfg *clientConfig, obs *observer,
) (*Client, error) {
	// Pass nil interface (not typed nil pointer!) when no embedder is configured.
	var domEmb domain.Embedder
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
	}

	lambda := mmr.DefaultLambda
	if cfg.selectorSet {
		lambda = cfg.lambda
	}
	summarizer := summarizeuc.New(cfg.summarizer, domEmb, summarizeuc.Config{
		MaxInputChars:     cfg.maxInputChars,
		ChunkTargetLength: cfg.chunkTargetLength,
		K:                 cfg.k,
		Lambda:            lambda,
	})

	workers := cfg.workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := worker.New(workers, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("docingest: %w", err)
	}

	ownerSvc := owneruc.New(b.owners)
	ingestionSvc := ingestionuc.New(b.documents, ownerSvc, objects, extract.Default(), summarizer, pool,
		ingestionuc.Config{
			MaxTextLength: cfg.maxTextLength,
			MinTextLength: cfg.minTextLength,
			WorkerTimeout: cfg.workerTimeout,
		}, zap.NewNop())

	if _, err := ingestionSvc.RecoverInterrupted(ctx); err != nil {
		_ = pool.Release(time.Second)
		return nil, fmt.Errorf("docingest: recover interrupted documents: %w", err)
	}

	healthSvc := newHealthService(b.pinger, map[string]any{
		"object_store": objects,
		"summarizer":   cfg.summarizer,
		"embedding":    cfg.embedder,
	})

	c := &Client{
		backend:   b,
		pool:      pool,
		ingestion: ingestionSvc,
		owners:    ownerSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}
	if domEmb != nil {
		c.retrieval = retrievaluc.New(ingestionSvc, domEmb, retrievaluc.Config{
			ChunkTargetLength: cfg.chunkTargetLength,
			K:                 cfg.k,
			Lambda:            lambda,
		})
	}
	return c, nil
}

// Close stops accepting processing work, waits briefly for running workers and releases the database.
func (c *Client) Close() {
	if c.pool != nil {
		_ = c.pool.Release(releaseTimeout)
	}
	if c.backend != nil {
		c.backend.close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.backend.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// RegisterOwner makes ownerID known. Registering twice is a no-op; created reports the first time.
func (c *Client) RegisterOwner(ctx context.Context, ownerID int64) (created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("register_owner", start, err, "owner_id", ownerID) }()

	_, created, err = c.owners.Register(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("register owner: %w", err)
	}
	return created, nil
}

// Documents returns the document service acting on behalf of ownerID.
func (c *Client) Documents(ownerID int64) *DocumentService {
	return &DocumentService{
		ownerID:   ownerID,
		ingestion: c.ingestion,
		retrieval: c.retrieval,
		obs:       c.obs,
	}
}

// Segment splits text into trimmed segments of at most targetLength characters, breaking on
// newlines where possible. A non-positive targetLength uses 1600.
func Segment(text string, targetLength int) []string {
	return chunk.Split(text, targetLength)
}

// Select returns up to k candidate indices chosen by Maximal Marginal Relevance against query,
// in selection order. Lambda 1 ranks purely by relevance; lambda 0 purely by diversity.
func Select(query []float32, candidates [][]float32, k int, lambda float64) []int {
	return mmr.Select(query, candidates, k, lambda)
}

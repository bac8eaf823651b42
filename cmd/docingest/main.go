package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/config"
	dbRedis "github.com/kailas-cloud/docingest/internal/db/redis"
	"github.com/kailas-cloud/docingest/internal/db/sqlite"
	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/extract"
	logpkg "github.com/kailas-cloud/docingest/internal/logger"
	"github.com/kailas-cloud/docingest/internal/metrics"
	fsstore "github.com/kailas-cloud/docingest/internal/objectstore/fs"
	gcsstore "github.com/kailas-cloud/docingest/internal/objectstore/gcs"
	documentrepo "github.com/kailas-cloud/docingest/internal/repository/document"
	"github.com/kailas-cloud/docingest/internal/repository/embcache"
	ownerrepo "github.com/kailas-cloud/docingest/internal/repository/owner"
	chiTransport "github.com/kailas-cloud/docingest/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docingest/internal/transport/openai"
	"github.com/kailas-cloud/docingest/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/docingest/internal/usecase/ingestion"
	owneruc "github.com/kailas-cloud/docingest/internal/usecase/owner"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
	summarizeuc "github.com/kailas-cloud/docingest/internal/usecase/summarize"
	"github.com/kailas-cloud/docingest/internal/version"
	"github.com/kailas-cloud/docingest/internal/worker"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Config{Env: env, Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docingest API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("object_driver", cfg.Storage.ObjectDriver),
	)

	metrics.Register()

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.close()

	if err := db.waitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	objects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open object store", zap.Error(err))
	}
	defer objects.Close()

	// Pass nil interface (not typed nil pointer!) when embeddings are not configured.
	var embedder domain.Embedder
	if cfg.Embedding.Enabled() {
		embedder = buildEmbedder(cfg.Embedding, cfg.Storage.KeyPrefix, db.kv, logger)
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}

	upstream := openaiTransport.NewSummarizer(&openaiTransport.Config{
		APIKey:    cfg.Summarizer.APIKey,
		BaseURL:   cfg.Summarizer.BaseURL,
		Model:     cfg.Summarizer.Model,
		MaxTokens: cfg.Summarizer.MaxTokens,
		Prompt:    cfg.Summarizer.Prompt,
		Timeout:   time.Duration(cfg.Summarizer.TimeoutSec) * time.Second,
		User:      "docingest/" + version.Version,
		Provider:  cfg.Summarizer.Provider,
		Logger:    logger,
	})
	lambda := cfg.Selector.LambdaOrDefault()
	summarizer := summarizeuc.New(upstream, embedder, summarizeuc.Config{
		MaxInputChars:     cfg.Summarizer.MaxInputChars,
		ChunkTargetLength: cfg.Ingestion.ChunkTargetLength,
		K:                 cfg.Selector.K,
		Lambda:            lambda,
	})

	pool, err := worker.New(cfg.Ingestion.WorkerPoolSize, logger)
	if err != nil {
		logger.Fatal("Failed to create worker pool", zap.Error(err))
	}

	ownerSvc := owneruc.New(db.owners)
	ingestionSvc := ingestionuc.New(
		db.documents, ownerSvc, objects, extract.Default(), summarizer, pool,
		ingestionuc.Config{
			MaxTextLength: cfg.Ingestion.MaxTextLength,
			MinTextLength: cfg.Ingestion.MinTextLength,
			WorkerTimeout: time.Duration(cfg.Ingestion.WorkerTimeoutSec) * time.Second,
		},
		logger,
	).WithPagination(cfg.Ingestion.DefaultPageSize, cfg.Ingestion.MaxPageSize)

	// Nothing is running yet, so every in-flight record belongs to a dead process.
	recovered, err := ingestionSvc.RecoverInterrupted(ctx)
	if err != nil {
		logger.Fatal("Failed to recover interrupted documents", zap.Error(err))
	}
	if recovered > 0 {
		logger.Warn("Marked interrupted documents as failed", zap.Int("count", recovered))
	}

	var retrieval chiTransport.RetrievalService
	if embedder != nil {
		retrieval = retrievaluc.New(ingestionSvc, embedder, retrievaluc.Config{
			ChunkTargetLength: cfg.Ingestion.ChunkTargetLength,
			K:                 cfg.Selector.K,
			Lambda:            lambda,
		})
	}

	healthSvc := healthuc.New(db.pinger).
		With("object_store", objects).
		With("summarizer", upstream)
	if hc, ok := embedder.(domain.HealthChecker); ok {
		healthSvc.With("embedding", hc)
	}

	server := chiTransport.NewServer(ingestionSvc, ownerSvc, retrieval, healthSvc, chiTransport.SelectorConfig{
		ChunkTargetLength: cfg.Ingestion.ChunkTargetLength,
		K:                 cfg.Selector.K,
		Lambda:            lambda,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdown := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// Workers still running after the deadline leave their documents in flight;
	// the next start marks them interrupted.
	if err := pool.Release(shutdown); err != nil {
		logger.Warn("Workers still running at shutdown", zap.Int("running", pool.Running()), zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// database bundles the repositories of the configured driver.
type database struct {
	documents ingestionuc.Repository
	owners    owneruc.Repository
	pinger    healthuc.DBPinger
	// kv backs the embedding cache; nil for drivers without a key-value API.
	kv           *dbRedis.Store
	waitForReady func(ctx context.Context, timeout time.Duration) error
	close        func()
}

func openDatabase(ctx context.Context, cfg config.Config) (*database, error) {
	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		return &database{
			documents:    documentrepo.New(store, cfg.Storage.KeyPrefix),
			owners:       ownerrepo.New(store, cfg.Storage.KeyPrefix),
			pinger:       store,
			kv:           store,
			waitForReady: store.WaitForReady,
			close:        store.Close,
		}, nil
	case config.DriverSQLite:
		sdb, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Database.Path})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &database{
			documents:    documentrepo.NewSQL(sdb),
			owners:       ownerrepo.NewSQL(sdb),
			pinger:       sdb,
			waitForReady: sdb.WaitForReady,
			close:        sdb.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// objectStore is what the composition root needs from either object store driver.
type objectStore interface {
	ingestionuc.ObjectStore
	HealthCheck(ctx context.Context) error
	Close() error
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (objectStore, error) {
	switch cfg.ObjectDriver {
	case config.ObjectStoreGCS:
		s, err := gcsstore.New(ctx, gcsstore.Config{
			Bucket:   cfg.Bucket,
			MaxBytes: cfg.MaxObjectBytes,
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("open gcs bucket %s: %w", cfg.Bucket, err)
		}
		return s, nil
	default:
		s, err := fsstore.New(cfg.RootDir, cfg.MaxObjectBytes)
		if err != nil {
			return nil, fmt.Errorf("open object root %s: %w", cfg.RootDir, err)
		}
		return s, nil
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.EmbeddingConfig,
	keyPrefix string,
	kv *dbRedis.Store,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		User:       "docingest/" + version.Version,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if kv != nil && cfg.Cache.Enabled {
		embedder = embcache.New(base, kv, embcache.Options{
			Prefix: keyPrefix,
			Model:  cfg.Model,
			TTL:    time.Duration(cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embedding.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.MaxBatchSize, logger)

	// Outermost, so cached vectors are keyed by the prefixed text.
	if cfg.Instruction != "" || cfg.PassageInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Instruction, cfg.PassageInstruction)
	}
	return embedder
}

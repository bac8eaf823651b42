// Package gcs serves document bytes from a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// DefaultMaxObjectBytes caps a single fetch when no limit is configured.
const DefaultMaxObjectBytes int64 = 64 << 20

// Config holds bucket settings.
type Config struct {
	Bucket   string
	MaxBytes int64
	// Endpoint overrides the API endpoint, e.g. for a local emulator.
	Endpoint string
}

type openFunc func(ctx context.Context, key string) (io.ReadCloser, error)

// Store reads objects by storage key from one bucket.
type Store struct {
	bucket   string
	maxBytes int64
	open     openFunc
	attrs    func(ctx context.Context) error
	close    func() error
}

// New creates a GCS-backed object store using application default credentials.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket required: %w", domain.ErrInvalidInput)
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	bucket := client.Bucket(cfg.Bucket)
	s := newStore(cfg.Bucket, cfg.MaxBytes, func(ctx context.Context, key string) (io.ReadCloser, error) {
		return bucket.Object(key).NewReader(ctx)
	})
	s.attrs = func(ctx context.Context) error {
		_, err := bucket.Attrs(ctx)
		return err
	}
	s.close = client.Close
	return s, nil
}

func newStore(bucket string, maxBytes int64, open openFunc) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	return &Store{
		bucket:   bucket,
		maxBytes: maxBytes,
		open:     open,
		attrs:    func(context.Context) error { return nil },
		close:    func() error { return nil },
	}
}

// Fetch downloads the object stored under key.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("storage key required: %w", domain.ErrInvalidInput)
	}
	r, err := s.open(ctx, key)
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("gs://%s/%s exceeds %d bytes: %w", s.bucket, key, s.maxBytes, domain.ErrInvalidInput)
	}
	return data, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, s.mapErr("", err))
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.close() }

func (s *Store) mapErr(key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", s.bucket, key, domain.ErrNotFound)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("gs://%s/%s: %w", s.bucket, key, domain.ErrNotFound)
		case gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("gs://%s/%s: %s: %w", s.bucket, key, gerr.Message, domain.ErrForbidden)
		}
	}
	return fmt.Errorf("gs://%s/%s: %v: %w", s.bucket, key, err, domain.ErrTransientIO)
}

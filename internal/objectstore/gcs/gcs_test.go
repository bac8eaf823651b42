package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/kailas-cloud/docingest/internal/domain"
)

func fakeOpen(objects map[string]string, err error) openFunc {
	return func(_ context.Context, key string) (io.ReadCloser, error) {
		if err != nil {
			return nil, err
		}
		body, ok := objects[key]
		if !ok {
			return nil, storage.ErrObjectNotExist
		}
		return io.NopCloser(strings.NewReader(body)), nil
	}
}

func TestFetch_OK(t *testing.T) {
	s := newStore("docs", 0, fakeOpen(map[string]string{"a/b.pdf": "%PDF"}, nil))

	data, err := s.Fetch(context.Background(), "a/b.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "%PDF" {
		t.Errorf("data = %q", data)
	}
}

func TestFetch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		openEr error
		key    string
		want   error
	}{
		{"object missing", nil, "missing", domain.ErrNotFound},
		{"bucket missing", storage.ErrBucketNotExist, "k", domain.ErrNotFound},
		{"api 404", &googleapi.Error{Code: http.StatusNotFound}, "k", domain.ErrNotFound},
		{"api 403", &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}, "k", domain.ErrForbidden},
		{"api 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, "k", domain.ErrTransientIO},
		{"network", errors.New("connection reset"), "k", domain.ErrTransientIO},
		{"empty key", nil, "", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore("docs", 0, fakeOpen(nil, tt.openEr))
			_, err := s.Fetch(context.Background(), tt.key)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetch_TooLarge(t *testing.T) {
	s := newStore("docs", 3, fakeOpen(map[string]string{"k": "abcd"}, nil))
	if _, err := s.Fetch(context.Background(), "k"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newStore("docs", 0, fakeOpen(nil, nil))
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	s.attrs = func(context.Context) error { return storage.ErrBucketNotExist }
	if err := s.HealthCheck(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

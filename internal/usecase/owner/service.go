// Package owner manages the registry of owners that documents can belong to.
package owner

import (
	"context"
	"fmt"
	"time"

	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
)

// Repository defines the storage contract for owners.
type Repository interface {
	Register(ctx context.Context, o domowner.Owner) (created bool, err error)
	Get(ctx context.Context, id int64) (domowner.Owner, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service registers and looks up owners.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New creates an owner service.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register records the owner. It is idempotent; created reports whether the owner is new.
func (s *Service) Register(ctx context.Context, id int64) (domowner.Owner, bool, error) {
	o, err := domowner.New(id, s.now())
	if err != nil {
		return domowner.Owner{}, false, err
	}
	created, err := s.repo.Register(ctx, o)
	if err != nil {
		return domowner.Owner{}, false, fmt.Errorf("register owner: %w", err)
	}
	if !created {
		if o, err = s.repo.Get(ctx, id); err != nil {
			return domowner.Owner{}, false, fmt.Errorf("get owner: %w", err)
		}
	}
	return o, created, nil
}

// Get returns a registered owner.
func (s *Service) Get(ctx context.Context, id int64) (domowner.Owner, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domowner.Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

// Exists reports whether id is registered.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("owner exists: %w", err)
	}
	return ok, nil
}

package owner

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// Owner is a registered user that documents belong to. The numeric ID is opaque.
type Owner struct {
	id        int64
	createdAt time.Time
}

// New validates and creates an Owner.
func New(id int64, now time.Time) (Owner, error) {
	if id <= 0 {
		return Owner{}, fmt.Errorf("owner ID must be positive: %w", domain.ErrInvalidInput)
	}
	return Owner{id: id, createdAt: now.UTC()}, nil
}

// Reconstruct creates an Owner without validation (storage hydration).
func Reconstruct(id int64, createdAt time.Time) Owner {
	return Owner{id: id, createdAt: createdAt}
}

// ID returns the owner identifier.
func (o Owner) ID() int64 { return o.id }

// CreatedAt returns the registration time.
func (o Owner) CreatedAt() time.Time { return o.createdAt }

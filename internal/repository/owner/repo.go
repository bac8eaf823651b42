// Package owner persists the registry of known owners.
package owner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/docingest/internal/db"
	"github.com/kailas-cloud/docingest/internal/db/sqlite"
	"github.com/kailas-cloud/docingest/internal/domain"
	domowner "github.com/kailas-cloud/docingest/internal/domain/owner"
)

// store is the consumer interface for owners (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetIfRevision(
		ctx context.Context, key string, expected int64, fields map[string]string, updates ...db.IndexUpdate,
	) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo stores owners as small hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates an owner repository. An empty prefix falls back to domain.DefaultKeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id int64) string { return r.prefix + "owner:" + strconv.FormatInt(id, 10) }

// Register stores the owner unless it already exists. Returns true if created.
func (r *Repo) Register(ctx context.Context, o domowner.Owner) (bool, error) {
	_, err := r.store.HSetIfRevision(ctx, r.key(o.ID()), 0, map[string]string{
		"id":         strconv.FormatInt(o.ID(), 10),
		"created_at": o.CreatedAt().UTC().Format(time.RFC3339Nano),
	})
	if errors.Is(err, db.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("register owner %d: %w: %w", o.ID(), domain.ErrTransientIO, err)
	}
	return true, nil
}

// Get returns a registered owner.
func (r *Repo) Get(ctx context.Context, id int64) (domowner.Owner, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if errors.Is(err, db.ErrKeyNotFound) {
		return domowner.Owner{}, domain.ErrOwnerNotFound
	}
	if err != nil {
		return domowner.Owner{}, fmt.Errorf("get owner %d: %w: %w", id, domain.ErrTransientIO, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	return domowner.Reconstruct(id, created), nil
}

// Exists reports whether the owner is registered.
func (r *Repo) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := r.store.Exists(ctx, r.key(id))
	if err != nil {
		return false, fmt.Errorf("owner exists %d: %w: %w", id, domain.ErrTransientIO, err)
	}
	return ok, nil
}

// sqlDB is the consumer interface over the SQLite handle (ISP).
type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepo stores owners in the SQLite owners table.
type SQLRepo struct {
	db sqlDB
}

// NewSQL creates a SQLite-backed owner repository.
func NewSQL(d sqlDB) *SQLRepo {
	return &SQLRepo{db: d}
}

// Register inserts the owner unless it already exists. Returns true if created.
func (r *SQLRepo) Register(ctx context.Context, o domowner.Owner) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO owners (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		o.ID(), sqlite.FormatTime(o.CreatedAt()))
	if err != nil {
		return false, fmt.Errorf("register owner %d: %w: %w", o.ID(), domain.ErrTransientIO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Get returns a registered owner.
func (r *SQLRepo) Get(ctx context.Context, id int64) (domowner.Owner, error) {
	var created string
	err := r.db.QueryRowContext(ctx, `SELECT created_at FROM owners WHERE id = ?`, id).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return domowner.Owner{}, domain.ErrOwnerNotFound
	}
	if err != nil {
		return domowner.Owner{}, fmt.Errorf("get owner %d: %w: %w", id, domain.ErrTransientIO, err)
	}
	return domowner.Reconstruct(id, sqlite.ParseTime(created)), nil
}

// Exists reports whether the owner is registered.
func (r *SQLRepo) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := r.Get(ctx, id)
	if errors.Is(err, domain.ErrOwnerNotFound) {
		return false, nil
	}
	return err == nil, err
}

package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/docingest/internal/db"
	"github.com/kailas-cloud/docingest/internal/domain"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// store is the consumer interface for documents (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HSetIfRevision(
		ctx context.Context, key string, expected int64, fields map[string]string, updates ...db.IndexUpdate,
	) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Repo stores documents as hashes in Redis or Valkey.
// Each owner has a sorted set of document IDs scored by creation time,
// and a global set tracks documents with a worker in flight. Both indexes
// are written in the same atomic step as the hash.
type Repo struct {
	store  store
	prefix string
}

// New creates a document repository. An empty prefix falls back to domain.DefaultKeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) docKey(id string) string          { return r.prefix + "doc:" + id }
func (r *Repo) ownerIndexKey(owner int64) string { return r.prefix + "owner:" + strconv.FormatInt(owner, 10) + ":docs" }
func (r *Repo) inFlightKey() string              { return r.prefix + "inflight" }

// Create stores a new document. It fails with ErrRevisionConflict if the ID is taken.
func (r *Repo) Create(ctx context.Context, doc *domdoc.Document) error {
	ownerIndex := db.IndexUpdate{
		Op:     db.IndexZAdd,
		Key:    r.ownerIndexKey(doc.OwnerID()),
		Member: doc.ID(),
		Score:  float64(doc.CreatedAt().UnixMilli()),
	}
	rev, err := r.store.HSetIfRevision(ctx, r.docKey(doc.ID()), 0, buildHashFields(doc),
		ownerIndex, r.inFlightUpdate(doc))
	if err != nil {
		return mapWriteErr(doc.ID(), err)
	}
	doc.SetRevision(rev)
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("hgetall %s: %w: %w", id, domain.ErrTransientIO, err)
	}
	return parseHashFields(m), nil
}

// Save writes the document if its revision still matches the stored one.
// On success the document carries the new revision.
func (r *Repo) Save(ctx context.Context, doc *domdoc.Document) error {
	if doc.Revision() == 0 {
		return fmt.Errorf("save unsaved document %s: %w", doc.ID(), domain.ErrInvalidInput)
	}
	rev, err := r.store.HSetIfRevision(ctx, r.docKey(doc.ID()), doc.Revision(), buildHashFields(doc),
		r.inFlightUpdate(doc))
	if err != nil {
		return mapWriteErr(doc.ID(), err)
	}
	doc.SetRevision(rev)
	return nil
}

// List returns an owner's documents newest first with offset-cursor pagination.
func (r *Repo) List(ctx context.Context, ownerID int64, cursor string, limit int) (
	[]domdoc.Document, string, error,
) {
	offset, limit, err := parsePage(cursor, limit)
	if err != nil {
		return nil, "", err
	}

	// Fetch one extra ID to learn whether another page exists.
	ids, err := r.store.ZRevRange(ctx, r.ownerIndexKey(ownerID), int64(offset), int64(offset+limit))
	if err != nil {
		return nil, "", fmt.Errorf("list owner %d: %w: %w", ownerID, domain.ErrTransientIO, err)
	}

	var next string
	if len(ids) > limit {
		ids = ids[:limit]
		next = strconv.Itoa(offset + limit)
	}

	docs, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	return docs, next, nil
}

// ListInFlight returns every document whose last recorded state is pending or processing.
func (r *Repo) ListInFlight(ctx context.Context) ([]domdoc.Document, error) {
	ids, err := r.store.SMembers(ctx, r.inFlightKey())
	if err != nil {
		return nil, fmt.Errorf("list in-flight: %w", err)
	}
	docs, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		if d.Status().IsInFlight() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *Repo) getMany(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	if len(ids) == 0 {
		return []domdoc.Document{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w: %w", domain.ErrTransientIO, err)
	}

	docs := make([]domdoc.Document, 0, len(maps))
	for _, m := range maps {
		if m == nil {
			continue // index entry outlived its hash
		}
		docs = append(docs, parseHashFields(m))
	}
	return docs, nil
}

func (r *Repo) inFlightUpdate(doc *domdoc.Document) db.IndexUpdate {
	op := db.IndexSRem
	if doc.Status().IsInFlight() {
		op = db.IndexSAdd
	}
	return db.IndexUpdate{Op: op, Key: r.inFlightKey(), Member: doc.ID()}
}

func mapWriteErr(id string, err error) error {
	var ce *db.ConflictError
	if errors.As(err, &ce) {
		return fmt.Errorf("save document %s: %w", id, domain.NewRevisionConflict(ce.Current))
	}
	return fmt.Errorf("save document %s: %w: %w", id, domain.ErrTransientIO, err)
}

func parsePage(cursor string, limit int) (offset, size int, err error) {
	size = limit
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	if cursor == "" {
		return 0, size, nil
	}
	offset, err = strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid cursor %q: %w", cursor, domain.ErrInvalidInput)
	}
	return offset, size, nil
}

package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docingest/internal/db/sqlite"
	"github.com/kailas-cloud/docingest/internal/domain"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// sqlDB is the consumer interface over the SQLite handle (ISP).
type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const documentColumns = "id, owner_id, storage_key, filename, content_type, status, text_content, " +
	"summary, error_message, attempt, revision, created_at, updated_at"

// SQLRepo stores documents in the SQLite documents table.
type SQLRepo struct {
	db sqlDB
}

// NewSQL creates a SQLite-backed document repository.
func NewSQL(d sqlDB) *SQLRepo {
	return &SQLRepo{db: d}
}

// Create inserts a new document with revision 1.
func (r *SQLRepo) Create(ctx context.Context, doc *domdoc.Document) error {
	s := doc.Snapshot()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.ID, s.OwnerID, s.StorageKey,
		sqlite.NullableString(s.Filename), sqlite.NullableString(s.ContentType),
		string(s.Status), sqlite.NullableString(s.Text), sqlite.NullableString(s.Summary),
		sqlite.NullableString(s.ErrorMessage), s.Attempt,
		sqlite.FormatTime(s.CreatedAt), sqlite.FormatTime(s.UpdatedAt),
	)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "FOREIGN KEY"):
			return fmt.Errorf("insert document %s: %w", s.ID, domain.ErrOwnerNotFound)
		case strings.Contains(err.Error(), "UNIQUE"):
			return fmt.Errorf("insert document %s: %w", s.ID, domain.NewRevisionConflict(1))
		}
		return fmt.Errorf("insert document %s: %w: %w", s.ID, domain.ErrTransientIO, err)
	}
	doc.SetRevision(1)
	return nil
}

// Get returns a document by ID.
func (r *SQLRepo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w: %w", id, domain.ErrTransientIO, err)
	}
	return doc, nil
}

// Save updates the row when the stored revision matches and bumps the revision.
func (r *SQLRepo) Save(ctx context.Context, doc *domdoc.Document) error {
	s := doc.Snapshot()
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents
         SET status = ?, text_content = ?, summary = ?, error_message = ?, attempt = ?,
             updated_at = ?, revision = revision + 1
         WHERE id = ? AND revision = ?`,
		string(s.Status), sqlite.NullableString(s.Text), sqlite.NullableString(s.Summary),
		sqlite.NullableString(s.ErrorMessage), s.Attempt, sqlite.FormatTime(s.UpdatedAt),
		s.ID, s.Revision,
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w: %w", s.ID, domain.ErrTransientIO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		doc.SetRevision(s.Revision + 1)
		return nil
	}

	var current int64
	err = r.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE id = ?`, s.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("read revision %s: %w: %w", s.ID, domain.ErrTransientIO, err)
	}
	return fmt.Errorf("save document %s: %w", s.ID, domain.NewRevisionConflict(current))
}

// List returns an owner's documents newest first with offset-cursor pagination.
func (r *SQLRepo) List(ctx context.Context, ownerID int64, cursor string, limit int) (
	[]domdoc.Document, string, error,
) {
	offset, limit, err := parsePage(cursor, limit)
	if err != nil {
		return nil, "", err
	}

	docs, err := r.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ?
         ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, limit+1, offset,
	)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(docs) > limit {
		docs = docs[:limit]
		next = strconv.Itoa(offset + limit)
	}
	return docs, next, nil
}

// ListInFlight returns every pending or processing document.
func (r *SQLRepo) ListInFlight(ctx context.Context) ([]domdoc.Document, error) {
	return r.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status IN (?, ?) ORDER BY created_at`,
		string(domdoc.StatusPending), string(domdoc.StatusProcessing),
	)
}

func (r *SQLRepo) query(ctx context.Context, q string, args ...any) ([]domdoc.Document, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w: %w", domain.ErrTransientIO, err)
	}
	defer rows.Close()

	docs := []domdoc.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w: %w", domain.ErrTransientIO, err)
	}
	return docs, nil
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (domdoc.Document, error) {
	var (
		s                      domdoc.Snapshot
		status                 string
		filename, contentType  sql.NullString
		text, summary, errMsg  sql.NullString
		createdRaw, updatedRaw string
	)
	if err := scanner.Scan(
		&s.ID, &s.OwnerID, &s.StorageKey, &filename, &contentType, &status,
		&text, &summary, &errMsg, &s.Attempt, &s.Revision, &createdRaw, &updatedRaw,
	); err != nil {
		return domdoc.Document{}, err
	}

	st, ok := domdoc.ParseStatus(status)
	if !ok {
		st = domdoc.StatusNone
	}
	s.Status = st
	s.Filename = filename.String
	s.ContentType = contentType.String
	s.Text = text.String
	s.Summary = summary.String
	s.ErrorMessage = errMsg.String
	s.CreatedAt = sqlite.ParseTime(createdRaw)
	s.UpdatedAt = sqlite.ParseTime(updatedRaw)
	return domdoc.Reconstruct(s), nil
}

package document

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/docingest/internal/db"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// Hash field names of a stored document.
const (
	fieldID          = "id"
	fieldOwnerID     = "owner_id"
	fieldStorageKey  = "storage_key"
	fieldFilename    = "filename"
	fieldContentType = "content_type"
	fieldStatus      = "status"
	fieldText        = "text"
	fieldSummary     = "summary"
	fieldError       = "error"
	fieldAttempt     = "attempt"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// buildHashFields flattens a document for HSET. Fields that do not belong to the
// current state are written empty so the CAS script deletes them.
func buildHashFields(doc *domdoc.Document) map[string]string {
	s := doc.Snapshot()
	return map[string]string{
		fieldID:          s.ID,
		fieldOwnerID:     strconv.FormatInt(s.OwnerID, 10),
		fieldStorageKey:  s.StorageKey,
		fieldFilename:    s.Filename,
		fieldContentType: s.ContentType,
		fieldStatus:      string(s.Status),
		fieldText:        s.Text,
		fieldSummary:     s.Summary,
		fieldError:       s.ErrorMessage,
		fieldAttempt:     strconv.FormatInt(s.Attempt, 10),
		fieldCreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt:   s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// parseHashFields rebuilds a document from HGETALL output.
func parseHashFields(m map[string]string) domdoc.Document {
	status, ok := domdoc.ParseStatus(m[fieldStatus])
	if !ok {
		status = domdoc.StatusNone
	}
	owner, _ := strconv.ParseInt(m[fieldOwnerID], 10, 64)
	attempt, _ := strconv.ParseInt(m[fieldAttempt], 10, 64)
	revision, _ := strconv.ParseInt(m[db.RevisionField], 10, 64)
	created, _ := time.Parse(time.RFC3339Nano, m[fieldCreatedAt])
	updated, _ := time.Parse(time.RFC3339Nano, m[fieldUpdatedAt])

	return domdoc.Reconstruct(domdoc.Snapshot{
		ID:           m[fieldID],
		OwnerID:      owner,
		StorageKey:   m[fieldStorageKey],
		Filename:     m[fieldFilename],
		ContentType:  m[fieldContentType],
		CreatedAt:    created,
		UpdatedAt:    updated,
		Status:       status,
		Text:         m[fieldText],
		Summary:      m[fieldSummary],
		ErrorMessage: m[fieldError],
		Attempt:      attempt,
		Revision:     revision,
	})
}

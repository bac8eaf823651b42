package docingest

import (
	"time"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
	retrievaluc "github.com/kailas-cloud/docingest/internal/usecase/retrieval"
)

// Status is a document's processing state.
type Status string

// Processing states.
const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no worker is driving the document.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusError }

// Document is a snapshot of an uploaded document and its processing outcome.
type Document struct {
	ID          string
	OwnerID     int64
	StorageKey  string
	Filename    string
	ContentType string
	Status      Status
	// Text and Summary are set only when Status is StatusDone.
	Text    string
	Summary string
	// ErrorMessage is set only when Status is StatusError.
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Revision     int64
}

// SubmitRequest describes an upload already stored in the object store.
type SubmitRequest struct {
	StorageKey  string
	Filename    string
	ContentType string
}

// ListResult is a page of documents.
type ListResult struct {
	Documents  []Document
	NextCursor string // empty on the last page
}

// ContextQuery asks for passages relevant to Text. Nil K or Lambda take the client defaults.
type ContextQuery struct {
	Text   string
	K      *int
	Lambda *float64
}

// Chunk is one selected passage of a document.
type Chunk struct {
	Index     int // segment position within the document
	Text      string
	Relevance float64
}

func fromInternalDocument(d domdoc.Document) Document {
	return Document{
		ID:           d.ID(),
		OwnerID:      d.OwnerID(),
		StorageKey:   d.StorageKey(),
		Filename:     d.Filename(),
		ContentType:  d.ContentType(),
		Status:       Status(d.Status()),
		Text:         d.Text(),
		Summary:      d.Summary(),
		ErrorMessage: d.ErrorMessage(),
		CreatedAt:    d.CreatedAt(),
		UpdatedAt:    d.UpdatedAt(),
		Revision:     d.Revision(),
	}
}

func fromInternalChunks(in []retrievaluc.Chunk) []Chunk {
	out := make([]Chunk, len(in))
	for i, c := range in {
		out[i] = Chunk{Index: c.Index, Text: c.Text, Relevance: c.Relevance}
	}
	return out
}

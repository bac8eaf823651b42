package chi

import (
	"time"

	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest             = "bad_request"
	codeUnauthorized           = "unauthorized"
	codeValidationFailed       = "validation_failed"
	codeNotFound               = "not_found"
	codeDocumentNotFound       = "document_not_found"
	codeOwnerNotFound          = "owner_not_found"
	codeForbidden              = "forbidden"
	codeUnsupportedFormat      = "unsupported_format"
	codeRevisionConflict       = "revision_conflict"
	codeInvalidState           = "invalid_state"
	codeRateLimited            = "rate_limited"
	codeOverloaded             = "overloaded"
	codeUnavailable            = "unavailable"
	codeNotImplemented         = "not_implemented"
	codeSummarizationFailed    = "summarization_failed"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeInternalError          = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type submitDocumentRequest struct {
	StorageKey  string `json:"storage_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type documentResponse struct {
	ID           string    `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	StorageKey   string    `json:"storage_key"`
	Filename     string    `json:"filename,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Status       string    `json:"status"`
	Text         string    `json:"text,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Revision     int64     `json:"revision"`
}

type documentListResponse struct {
	Items      []documentResponse `json:"items"`
	NextCursor *string            `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type contextRequest struct {
	Query  string   `json:"query"`
	K      *int     `json:"k,omitempty"`
	Lambda *float64 `json:"lambda,omitempty"`
}

type chunkResponse struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

type contextResponse struct {
	Chunks []chunkResponse `json:"chunks"`
}

type segmentRequest struct {
	Text         string `json:"text"`
	TargetLength *int   `json:"target_length,omitempty"`
}

type segmentResponse struct {
	Segments []string `json:"segments"`
}

type selectRequest struct {
	Query      []float32   `json:"query"`
	Candidates [][]float32 `json:"candidates"`
	K          *int        `json:"k,omitempty"`
	Lambda     *float64    `json:"lambda,omitempty"`
}

type selectResponse struct {
	Indices []int `json:"indices"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentToResponse(d domdoc.Document) documentResponse {
	return documentResponse{
		ID:           d.ID(),
		OwnerID:      d.OwnerID(),
		StorageKey:   d.StorageKey(),
		Filename:     d.Filename(),
		ContentType:  d.ContentType(),
		Status:       string(d.Status()),
		Text:         d.Text(),
		Summary:      d.Summary(),
		ErrorMessage: d.ErrorMessage(),
		CreatedAt:    d.CreatedAt().UTC(),
		UpdatedAt:    d.UpdatedAt().UTC(),
		Revision:     d.Revision(),
	}
}

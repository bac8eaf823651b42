package document

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// Document is the ingestion aggregate: one uploaded file and its derived text and summary.
type Document struct {
	id          string
	ownerID     int64
	storageKey  string
	filename    string
	contentType string
	createdAt   time.Time
	updatedAt   time.Time
	state       State
	attempt     int64
	revision    int64
}

// New validates and creates a Document in state None.
// The storage key is an opaque reference owned by the object store and is never interpreted here.
func New(id string, ownerID int64, storageKey, filename, contentType string, now time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", domain.ErrInvalidInput)
	}
	if ownerID <= 0 {
		return Document{}, fmt.Errorf("owner ID must be positive: %w", domain.ErrInvalidInput)
	}
	if storageKey == "" {
		return Document{}, fmt.Errorf("storage key is required: %w", domain.ErrInvalidInput)
	}
	if len(storageKey) > 1024 {
		return Document{}, fmt.Errorf("storage key too long (max 1024): %w", domain.ErrInvalidInput)
	}

	now = now.UTC()
	return Document{
		id:          id,
		ownerID:     ownerID,
		storageKey:  storageKey,
		filename:    filename,
		contentType: contentType,
		createdAt:   now,
		updatedAt:   now,
		state:       None{},
	}, nil
}

// Snapshot is the flattened storage form of a Document.
type Snapshot struct {
	ID           string
	OwnerID      int64
	StorageKey   string
	Filename     string
	ContentType  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Status       Status
	Text         string
	Summary      string
	ErrorMessage string
	Attempt      int64
	Revision     int64
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(s Snapshot) Document {
	return Document{
		id:          s.ID,
		ownerID:     s.OwnerID,
		storageKey:  s.StorageKey,
		filename:    s.Filename,
		contentType: s.ContentType,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		state:       StateFromParts(s.Status, s.Text, s.Summary, s.ErrorMessage),
		attempt:     s.Attempt,
		revision:    s.Revision,
	}
}

// Snapshot flattens the document for persistence.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{
		ID:           d.id,
		OwnerID:      d.ownerID,
		StorageKey:   d.storageKey,
		Filename:     d.filename,
		ContentType:  d.contentType,
		CreatedAt:    d.createdAt,
		UpdatedAt:    d.updatedAt,
		Status:       d.Status(),
		Text:         d.Text(),
		Summary:      d.Summary(),
		ErrorMessage: d.ErrorMessage(),
		Attempt:      d.attempt,
		Revision:     d.revision,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// OwnerID returns the owning user.
func (d *Document) OwnerID() int64 { return d.ownerID }

// StorageKey returns the object store reference.
func (d *Document) StorageKey() string { return d.storageKey }

// Filename returns the original file name, if known.
func (d *Document) Filename() string { return d.filename }

// ContentType returns the declared media type, if known.
func (d *Document) ContentType() string { return d.contentType }

// CreatedAt returns the submission time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the time of the last state change.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Attempt returns the number of accepted processing requests.
func (d *Document) Attempt() int64 { return d.attempt }

// Revision returns the persisted revision used for optimistic locking.
func (d *Document) Revision() int64 { return d.revision }

// SetRevision records the revision assigned by the store after a successful write.
func (d *Document) SetRevision(rev int64) { d.revision = rev }

// State returns the tagged processing state.
func (d *Document) State() State {
	if d.state == nil {
		return None{}
	}
	return d.state
}

// Status returns the state discriminator.
func (d *Document) Status() Status { return d.State().Status() }

// Text returns the extracted text; empty unless the document is done.
func (d *Document) Text() string {
	if s, ok := d.State().(Done); ok {
		return s.Text
	}
	return ""
}

// Summary returns the summary; empty unless the document is done.
func (d *Document) Summary() string {
	if s, ok := d.State().(Done); ok {
		return s.Summary
	}
	return ""
}

// ErrorMessage returns the failure reason; empty unless the document is in error.
func (d *Document) ErrorMessage() string {
	if s, ok := d.State().(Failed); ok {
		return s.Message
	}
	return ""
}

// OwnedBy reports whether ownerID owns the document.
func (d *Document) OwnedBy(ownerID int64) bool { return d.ownerID == ownerID }

// MarkPending (re)arms the pipeline from any state and starts a new attempt.
// Prior results and errors are discarded. Returns the new attempt number.
func (d *Document) MarkPending(now time.Time) int64 {
	d.attempt++
	d.state = Pending{}
	d.updatedAt = now.UTC()
	return d.attempt
}

// StartProcessing moves pending to processing for the given attempt.
// It fails when another attempt superseded this one or the document is not pending.
func (d *Document) StartProcessing(attempt int64, now time.Time) error {
	if err := d.checkAttempt(attempt); err != nil {
		return err
	}
	if d.Status() != StatusPending {
		return fmt.Errorf("start processing from %s: %w", d.Status(), domain.ErrInvalidTransition)
	}
	d.state = Processing{}
	d.updatedAt = now.UTC()
	return nil
}

// Complete moves processing to done. Text longer than maxTextLength characters is truncated.
func (d *Document) Complete(attempt int64, text, summary string, maxTextLength int, now time.Time) error {
	if err := d.checkAttempt(attempt); err != nil {
		return err
	}
	if d.Status() != StatusProcessing {
		return fmt.Errorf("complete from %s: %w", d.Status(), domain.ErrInvalidTransition)
	}
	if summary == "" {
		return fmt.Errorf("complete with empty summary: %w", domain.ErrInvalidInput)
	}
	d.state = Done{Text: TruncateText(text, maxTextLength), Summary: summary}
	d.updatedAt = now.UTC()
	return nil
}

// Fail moves an in-flight attempt to error with a human-readable message.
func (d *Document) Fail(attempt int64, message string, now time.Time) error {
	if err := d.checkAttempt(attempt); err != nil {
		return err
	}
	if !d.Status().IsInFlight() {
		return fmt.Errorf("fail from %s: %w", d.Status(), domain.ErrInvalidTransition)
	}
	d.state = Failed{Message: failureMessage(message)}
	d.updatedAt = now.UTC()
	return nil
}

// Interrupt fails an in-flight document regardless of attempt.
// Used when the process that owned the attempt is gone.
func (d *Document) Interrupt(message string, now time.Time) error {
	if !d.Status().IsInFlight() {
		return fmt.Errorf("interrupt from %s: %w", d.Status(), domain.ErrInvalidTransition)
	}
	d.state = Failed{Message: failureMessage(message)}
	d.updatedAt = now.UTC()
	return nil
}

func (d *Document) checkAttempt(attempt int64) error {
	if attempt != d.attempt {
		return fmt.Errorf("attempt %d superseded by %d: %w", attempt, d.attempt, domain.ErrInvalidTransition)
	}
	return nil
}

func failureMessage(msg string) string {
	if msg == "" {
		return "processing failed"
	}
	return msg
}

// TruncateText cuts s to at most maxChars characters (runes). maxChars <= 0 disables the limit.
func TruncateText(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

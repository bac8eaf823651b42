package document

// Status is the persisted discriminator of a document's processing state.
type Status string

const (
	// StatusNone is the state of a freshly submitted document.
	StatusNone Status = "none"
	// StatusPending means a processing request was accepted and a worker is scheduled.
	StatusPending Status = "pending"
	// StatusProcessing means a worker is extracting and summarizing.
	StatusProcessing Status = "processing"
	// StatusDone means text and summary are available.
	StatusDone Status = "done"
	// StatusError means the last attempt failed; see the error message.
	StatusError Status = "error"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusNone, StatusPending, StatusProcessing, StatusDone, StatusError}
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(value string) (Status, bool) {
	for _, s := range AllStatuses() {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further automatic transition follows this status.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// IsInFlight reports whether a worker is (or should be) driving the document.
func (s Status) IsInFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

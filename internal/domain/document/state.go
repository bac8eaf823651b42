package document

// State is the tagged processing state of a document.
// Exactly one variant holds at a time, so a document can never carry
// both a result and a failure message.
type State interface {
	Status() Status
	isState()
}

// None is the initial state after submission.
type None struct{}

// Pending is the state after a processing request was accepted.
type Pending struct{}

// Processing is the state while a worker runs.
type Processing struct{}

// Done carries the extracted text and its summary.
type Done struct {
	Text    string
	Summary string
}

// Failed carries the human-readable reason of the last failed attempt.
type Failed struct {
	Message string
}

func (None) Status() Status       { return StatusNone }
func (Pending) Status() Status    { return StatusPending }
func (Processing) Status() Status { return StatusProcessing }
func (Done) Status() Status       { return StatusDone }
func (Failed) Status() Status     { return StatusError }

func (None) isState()       {}
func (Pending) isState()    {}
func (Processing) isState() {}
func (Done) isState()       {}
func (Failed) isState()     {}

// StateFromParts rebuilds a State from its flattened storage representation.
// Fields that do not belong to the status are ignored.
func StateFromParts(status Status, text, summary, errorMessage string) State {
	switch status {
	case StatusPending:
		return Pending{}
	case StatusProcessing:
		return Processing{}
	case StatusDone:
		return Done{Text: text, Summary: summary}
	case StatusError:
		return Failed{Message: errorMessage}
	default:
		return None{}
	}
}

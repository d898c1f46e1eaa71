package mutator

import "fmt"

// Pipeline phases reported by AttachmentError.
const (
	PhaseValidating       = "validating"
	PhaseEnteringEditMode = "entering_edit_mode"
	PhaseAssembling       = "assembling"
	PhaseAttaching        = "attaching"
	PhaseRendering        = "rendering"
)

// AttachmentError reports an unexpected fault while adding panels, including
// recovered panics. Attached lists the panels left attached to the dashboard.
type AttachmentError struct {
	Phase    string
	PanelID  int
	Attached []int
	Err      error
}

// Error implements the error interface.
func (e *AttachmentError) Error() string {
	switch e.Phase {
	case PhaseAssembling, PhaseAttaching:
		return fmt.Sprintf("%s panel %d: %v", e.Phase, e.PanelID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
}

// Unwrap returns the underlying fault.
func (e *AttachmentError) Unwrap() error {
	return e.Err
}

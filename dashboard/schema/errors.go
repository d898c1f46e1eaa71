package schema

import (
	"fmt"
	"strings"

	"goa.design/dashpanels/runtime/tools"
)

// Constraint values reported in Issue.Constraint.
const (
	ConstraintMissingField = "missing_field"
	ConstraintRange        = "invalid_range"
	ConstraintLength       = "invalid_length"
	ConstraintFieldType    = "invalid_field_type"
	ConstraintInvalid      = "invalid"
)

type (
	// ValidationError reports every constraint violated by a panels payload.
	ValidationError struct {
		Issues []Issue
	}

	// Issue is one violated constraint.
	Issue struct {
		// Path is the JSON pointer of the offending value, "" for the root.
		Path string
		// Constraint is the machine-readable kind of violation.
		Constraint string
		// Message is the human-readable description.
		Message string
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid panels configuration"
	}
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.String()
	}
	return "invalid panels configuration: " + strings.Join(msgs, "; ")
}

// FieldIssues converts the issues into tool field issues.
func (e *ValidationError) FieldIssues() []tools.FieldIssue {
	out := make([]tools.FieldIssue, len(e.Issues))
	for i, is := range e.Issues {
		out[i] = tools.FieldIssue{Field: is.Path, Constraint: is.Constraint, Message: is.Message}
	}
	return out
}

// String renders the issue as "<path>: <message>".
func (i Issue) String() string {
	path := i.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s: %s", path, i.Message)
}

// Package tools defines the metadata published for an invocable tool.
package tools

type (
	// ToolSpec enumerates the metadata advertised for a tool so that an agent
	// runtime can discover and invoke it without compile-time binding.
	ToolSpec struct {
		// Name is the stable tool identifier.
		Name Ident
		// Description provides human-readable context for planners.
		Description string
		// Category groups related tools in registry listings.
		Category string
		// Tags carries optional metadata labels used by policy or UI layers.
		Tags []string
		// Payload describes the input contract of the tool.
		Payload TypeSpec
	}

	// TypeSpec describes the payload schema for a tool.
	TypeSpec struct {
		// Name is the Go identifier associated with the type.
		Name string
		// Schema contains the JSON schema document.
		Schema []byte
	}

	// FieldIssue represents a single validation issue for a payload.
	// Constraint values follow goa error kinds: missing_field,
	// invalid_range, invalid_length, invalid_field_type.
	FieldIssue struct {
		Field      string
		Constraint string
		Message    string
	}
)

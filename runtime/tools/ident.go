package tools

import "strings"

// Ident is the strong type for tool identifiers. Identifiers are either a bare
// tool name ("add_dashboard_panels") or qualified by a toolset
// ("dashboard.add_dashboard_panels").
type Ident string

// String returns the string representation of the identifier.
func (id Ident) String() string {
	return string(id)
}

// Toolset returns the toolset component of the identifier, if any.
func (id Ident) Toolset() string {
	i := strings.LastIndex(string(id), ".")
	if i < 0 {
		return ""
	}
	return string(id)[:i]
}

// Tool returns the tool name component of the identifier.
func (id Ident) Tool() string {
	return string(id)[strings.LastIndex(string(id), ".")+1:]
}

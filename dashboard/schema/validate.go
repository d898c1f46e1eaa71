// Package schema defines the declarative input contract for adding panels to
// a dashboard: the embedded JSON Schema, the typed configuration values it
// decodes into and the validation errors it reports.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SchemaID is the canonical identifier of the panels schema document.
const SchemaID = "https://goa.design/dashpanels/add-panels.json"

//go:embed schema.json
var schemaJSON []byte

type compiled struct {
	batch *jsonschema.Schema
	panel *jsonschema.Schema
}

var (
	compileSchemas = sync.OnceValues(compile)
	printer        = message.NewPrinter(language.English)
)

// JSON returns a copy of the JSON Schema document describing a panels batch.
func JSON() []byte {
	return bytes.Clone(schemaJSON)
}

// Validate checks raw against the panels schema and decodes it into a batch
// with defaults applied. raw may be JSON text ([]byte, json.RawMessage or
// string) or any value encodable with encoding/json. All violations are
// reported together in a *ValidationError.
func Validate(raw any) (*AddPanelsBatch, error) {
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	var batch AddPanelsBatch
	if err := validateInto(s.batch, raw, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ValidatePanel checks a single panel configuration.
func ValidatePanel(raw any) (*PanelConfig, error) {
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	var cfg PanelConfig
	if err := validateInto(s.panel, raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func compile() (*compiled, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse panels schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, fmt.Errorf("add panels schema: %w", err)
	}
	batch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile panels schema: %w", err)
	}
	panel, err := c.Compile(SchemaID + "#/$defs/panel")
	if err != nil {
		return nil, fmt.Errorf("compile panel schema: %w", err)
	}
	return &compiled{batch: batch, panel: panel}, nil
}

func validateInto(s *jsonschema.Schema, raw any, dst any) error {
	text, err := jsonText(raw)
	if err != nil {
		return invalid("", fmt.Sprintf("payload is not JSON encodable: %v", err))
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(text))
	if err != nil {
		return invalid("", fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := s.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Issues: issues(verr)}
		}
		return invalid("", err.Error())
	}
	normalized, err := json.Marshal(normalizeNumbers(doc))
	if err != nil {
		return invalid("", fmt.Sprintf("encode payload: %v", err))
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		return invalid("", fmt.Sprintf("decode payload: %v", err))
	}
	return nil
}

func jsonText(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(raw)
	}
}

// normalizeNumbers rewrites integral numbers such as 8.0 or 1e1 so that they
// decode into Go integers. The schema accepts them as integers.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return t
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	default:
		return v
	}
}

func issues(verr *jsonschema.ValidationError) []Issue {
	var out []Issue
	collect(verr, &out)
	if len(out) == 0 {
		out = append(out, Issue{
			Path:       pointer(verr.InstanceLocation),
			Constraint: ConstraintInvalid,
			Message:    verr.ErrorKind.LocalizedString(printer),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collect(e *jsonschema.ValidationError, out *[]Issue) {
	if len(e.Causes) > 0 {
		for _, c := range e.Causes {
			collect(c, out)
		}
		return
	}
	switch k := e.ErrorKind.(type) {
	case *kind.Group, *kind.Schema, *kind.Reference:
		return
	case *kind.Required:
		for _, m := range k.Missing {
			*out = append(*out, Issue{
				Path:       pointer(append(append([]string(nil), e.InstanceLocation...), m)),
				Constraint: ConstraintMissingField,
				Message:    fmt.Sprintf("missing required field %q", m),
			})
		}
		return
	}
	*out = append(*out, Issue{
		Path:       pointer(e.InstanceLocation),
		Constraint: constraintOf(e.ErrorKind),
		Message:    e.ErrorKind.LocalizedString(printer),
	})
}

func constraintOf(k jsonschema.ErrorKind) string {
	switch k.(type) {
	case *kind.Minimum, *kind.Maximum, *kind.ExclusiveMinimum, *kind.ExclusiveMaximum:
		return ConstraintRange
	case *kind.MinItems, *kind.MaxItems, *kind.MinLength, *kind.MaxLength:
		return ConstraintLength
	case *kind.Type:
		return ConstraintFieldType
	default:
		return ConstraintInvalid
	}
}

func pointer(tokens []string) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteByte('/')
		t = strings.ReplaceAll(t, "~", "~0")
		sb.WriteString(strings.ReplaceAll(t, "/", "~1"))
	}
	return sb.String()
}

func invalid(path, msg string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Constraint: ConstraintInvalid, Message: msg}}}
}

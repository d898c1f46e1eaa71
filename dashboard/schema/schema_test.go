package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const examplePayload = `{"panels":[{"pluginId":"timeseries","targets":[{"expr":"up","datasource":{"type":"prometheus","uid":"ds1"}}]}]}`

func panelsJSON(n int) string {
	panels := make([]string, n)
	for i := range panels {
		panels[i] = fmt.Sprintf(`{"pluginId":"stat","title":"p%d"}`, i)
	}
	return `{"panels":[` + strings.Join(panels, ",") + `]}`
}

func requireIssues(t *testing.T, err error) []Issue {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Issues)
	return verr.Issues
}

func TestValidateAppliesDefaults(t *testing.T) {
	batch, err := Validate(examplePayload)
	require.NoError(t, err)
	require.Len(t, batch.Panels, 1)

	p := batch.Panels[0]
	assert.Equal(t, "timeseries", p.PluginID)
	assert.Empty(t, p.Title)
	require.Len(t, p.Targets, 1)
	tgt := p.Targets[0]
	assert.Equal(t, "A", tgt.RefID)
	assert.True(t, tgt.Range)
	assert.False(t, tgt.Hide)
	assert.Equal(t, "up", tgt.Expr)
	assert.Equal(t, DataSourceRef{Type: "prometheus", UID: "ds1"}, tgt.Datasource)
	assert.Nil(t, p.GridPos)
	assert.False(t, p.HasTimeOverride())
}

func TestValidateAcceptsInputForms(t *testing.T) {
	goValue := map[string]any{
		"panels": []any{map[string]any{"pluginId": "gauge"}},
	}
	cases := map[string]any{
		"bytes":    []byte(examplePayload),
		"raw":      json.RawMessage(examplePayload),
		"string":   examplePayload,
		"go value": goValue,
		"typed": AddPanelsBatch{Panels: []*PanelConfig{{
			PluginID: "stat",
			GridPos:  &GridPos{H: 4, W: 6},
		}}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			batch, err := Validate(raw)
			require.NoError(t, err)
			require.Len(t, batch.Panels, 1)
		})
	}
}

func TestValidateGridPos(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		batch, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"x":3}}]}`)
		require.NoError(t, err)
		assert.Equal(t, &GridPos{H: 8, W: 12, X: 3, Y: 0}, batch.Panels[0].GridPos)
	})
	t.Run("height 24 is accepted", func(t *testing.T) {
		batch, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"h":24}}]}`)
		require.NoError(t, err)
		assert.Equal(t, 24, batch.Panels[0].GridPos.H)
	})
	t.Run("height 25 is rejected", func(t *testing.T) {
		_, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"h":25}}]}`)
		issues := requireIssues(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "/panels/0/gridPos/h", issues[0].Path)
		assert.Equal(t, ConstraintRange, issues[0].Constraint)
	})
	t.Run("x out of range is rejected", func(t *testing.T) {
		_, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"x":24}}]}`)
		issues := requireIssues(t, err)
		assert.Equal(t, ConstraintRange, issues[0].Constraint)
	})
	t.Run("integral floats decode", func(t *testing.T) {
		batch, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"h":6.0,"w":1e1}}]}`)
		require.NoError(t, err)
		assert.Equal(t, 6, batch.Panels[0].GridPos.H)
		assert.Equal(t, 10, batch.Panels[0].GridPos.W)
	})
	t.Run("fractions are rejected", func(t *testing.T) {
		_, err := Validate(`{"panels":[{"pluginId":"stat","gridPos":{"h":6.5}}]}`)
		issues := requireIssues(t, err)
		assert.Equal(t, ConstraintFieldType, issues[0].Constraint)
	})
}

func TestValidateBatchSizeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("batches of 1 to 5 panels are valid", prop.ForAll(
		func(n int) bool {
			batch, err := Validate(panelsJSON(n))
			return err == nil && len(batch.Panels) == n
		},
		gen.IntRange(1, MaxPanels),
	))

	properties.Property("empty or oversized batches are invalid", prop.ForAll(
		func(n int) bool {
			_, err := Validate(panelsJSON(n))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return false
			}
			return verr.Issues[0].Path == "/panels" && verr.Issues[0].Constraint == ConstraintLength
		},
		gen.IntRange(0, 20).SuchThat(func(n int) bool { return n == 0 || n > MaxPanels }),
	))

	properties.TestingRun(t)
}

func TestValidateReportsAllIssues(t *testing.T) {
	_, err := Validate(`{"panels":[
		{"title":"no plugin"},
		{"pluginId":"stat","targets":[{"expr":"up"}],"gridPos":{"w":0}}
	]}`)
	issues := requireIssues(t, err)

	byPath := make(map[string]Issue, len(issues))
	for _, is := range issues {
		byPath[is.Path] = is
	}
	require.Contains(t, byPath, "/panels/0/pluginId")
	assert.Equal(t, ConstraintMissingField, byPath["/panels/0/pluginId"].Constraint)
	require.Contains(t, byPath, "/panels/1/targets/0/datasource")
	assert.Equal(t, ConstraintMissingField, byPath["/panels/1/targets/0/datasource"].Constraint)
	require.Contains(t, byPath, "/panels/1/gridPos/w")
	assert.Equal(t, ConstraintRange, byPath["/panels/1/gridPos/w"].Constraint)
}

func TestValidateTargetsCardinality(t *testing.T) {
	_, err := Validate(`{"panels":[{"pluginId":"stat","targets":[]}]}`)
	issues := requireIssues(t, err)
	assert.Equal(t, "/panels/0/targets", issues[0].Path)
	assert.Equal(t, ConstraintLength, issues[0].Constraint)
}

func TestValidateIgnoresUnknownFields(t *testing.T) {
	batch, err := Validate(`{"panels":[{"pluginId":"stat","repeat":"host"}],"extra":true}`)
	require.NoError(t, err)
	assert.Equal(t, "stat", batch.Panels[0].PluginID)
}

func TestValidateMalformedInput(t *testing.T) {
	cases := map[string]any{
		"bad json":   `{"panels":`,
		"not object": `[1,2]`,
		"nil":        nil,
		"missing":    `{}`,
		"func value": func() {},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(raw)
			requireIssues(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid panels configuration"))
		})
	}
}

func TestValidatePanel(t *testing.T) {
	cfg, err := ValidatePanel(`{"pluginId":"stat","timeFrom":"1h","transformations":[{"id":"reduce"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "1h", cfg.TimeFrom)
	assert.True(t, cfg.HasTimeOverride())
	require.Len(t, cfg.Transformations, 1)
	assert.Nil(t, cfg.Transformations[0].Options)

	_, err = ValidatePanel(`{"title":"x"}`)
	issues := requireIssues(t, err)
	assert.Equal(t, "/pluginId", issues[0].Path)
}

func TestFieldIssues(t *testing.T) {
	verr := &ValidationError{Issues: []Issue{{Path: "/panels", Constraint: ConstraintLength, Message: "minItems: got 0, want 1"}}}
	fi := verr.FieldIssues()
	require.Len(t, fi, 1)
	assert.Equal(t, "/panels", fi[0].Field)
	assert.Equal(t, ConstraintLength, fi[0].Constraint)
	assert.Equal(t, "invalid panels configuration: /panels: minItems: got 0, want 1", verr.Error())
}

func TestJSONIsSchemaDocument(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(JSON(), &doc))
	assert.Equal(t, SchemaID, doc["$id"])
}

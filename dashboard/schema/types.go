package schema

import "encoding/json"

const (
	// DefaultRefID is the query reference ID used when a target omits refId.
	DefaultRefID = "A"
	// DefaultGridHeight is the panel height used when gridPos omits h.
	DefaultGridHeight = 8
	// DefaultGridWidth is the panel width used when gridPos omits w.
	DefaultGridWidth = 12
	// MaxPanels bounds the number of panels accepted in one batch.
	MaxPanels = 5
	// MaxTargets bounds the number of query targets accepted per panel.
	MaxTargets = 5
)

type (
	// AddPanelsBatch is a validated batch of panel configurations.
	AddPanelsBatch struct {
		Panels []*PanelConfig `json:"panels"`
	}

	// PanelConfig describes one panel. Values are produced by Validate and
	// must not be mutated afterwards.
	PanelConfig struct {
		Title            string           `json:"title,omitempty"`
		Description      string           `json:"description,omitempty"`
		PluginID         string           `json:"pluginId"`
		Datasource       *DataSourceRef   `json:"datasource,omitempty"`
		Options          map[string]any   `json:"options,omitempty"`
		FieldConfig      *FieldConfig     `json:"fieldConfig,omitempty"`
		Targets          []QueryTarget    `json:"targets,omitempty"`
		GridPos          *GridPos         `json:"gridPos,omitempty"`
		Transformations  []Transformation `json:"transformations,omitempty"`
		TimeFrom         string           `json:"timeFrom,omitempty"`
		TimeShift        string           `json:"timeShift,omitempty"`
		HideTimeOverride bool             `json:"hideTimeOverride,omitempty"`
		Transparent      bool             `json:"transparent,omitempty"`
		MaxPerRow        *int             `json:"maxPerRow,omitempty"`
	}

	// DataSourceRef identifies a query backend instance.
	DataSourceRef struct {
		Type string `json:"type"`
		UID  string `json:"uid"`
	}

	// QueryTarget is one data query bound to a panel.
	QueryTarget struct {
		RefID        string        `json:"refId"`
		Datasource   DataSourceRef `json:"datasource"`
		Hide         bool          `json:"hide"`
		Expr         string        `json:"expr"`
		Range        bool          `json:"range"`
		LegendFormat string        `json:"legendFormat,omitempty"`
	}

	// FieldConfig holds field styling. Values are opaque to this package.
	FieldConfig struct {
		Defaults  map[string]any `json:"defaults"`
		Overrides []any          `json:"overrides"`
	}

	// GridPos places a panel on the 24 column dashboard grid.
	GridPos struct {
		H int `json:"h"`
		W int `json:"w"`
		X int `json:"x"`
		Y int `json:"y"`
	}

	// Transformation is a named post-processing step applied to query results.
	Transformation struct {
		ID      string         `json:"id"`
		Options map[string]any `json:"options,omitempty"`
	}
)

// HasTimeOverride reports whether the panel overrides the dashboard time range.
func (c *PanelConfig) HasTimeOverride() bool {
	return c.TimeFrom != "" || c.TimeShift != ""
}

// UnmarshalJSON decodes a target applying the refId, hide and range defaults.
func (t *QueryTarget) UnmarshalJSON(data []byte) error {
	type plain QueryTarget
	p := plain{RefID: DefaultRefID, Range: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = QueryTarget(p)
	return nil
}

// UnmarshalJSON decodes a grid position applying the size defaults.
func (g *GridPos) UnmarshalJSON(data []byte) error {
	type plain GridPos
	p := plain{H: DefaultGridHeight, W: DefaultGridWidth}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = GridPos(p)
	return nil
}

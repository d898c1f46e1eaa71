package grafana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/grafana/grafana-openapi-client-go/client/dashboards"
	"github.com/grafana/grafana-openapi-client-go/models"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
)

// DefaultSaveMessage is the version message recorded when panels are saved.
const DefaultSaveMessage = "Add panels"

type (
	// Dashboard is a Grafana dashboard loaded by UID. Attached panels are
	// appended to the dashboard JSON model and published by ForceRender.
	Dashboard struct {
		client    *Client
		uid       string
		folderUID string
		title     string
		model     map[string]any
		existing  []int
		added     []int
		nextY     int
		editing   bool
		message   string
	}

	// panelModel is the Grafana JSON model of a panel.
	panelModel struct {
		ID               int                     `json:"id"`
		Type             string                  `json:"type"`
		Title            string                  `json:"title"`
		Description      string                  `json:"description,omitempty"`
		GridPos          schema.GridPos          `json:"gridPos"`
		Datasource       *schema.DataSourceRef   `json:"datasource,omitempty"`
		Targets          []schema.QueryTarget    `json:"targets,omitempty"`
		Transformations  []schema.Transformation `json:"transformations,omitempty"`
		Options          map[string]any          `json:"options"`
		FieldConfig      schema.FieldConfig      `json:"fieldConfig"`
		TimeFrom         string                  `json:"timeFrom,omitempty"`
		TimeShift        string                  `json:"timeShift,omitempty"`
		HideTimeOverride bool                    `json:"hideTimeOverride,omitempty"`
		Transparent      bool                    `json:"transparent,omitempty"`
		MaxPerRow        *int                    `json:"maxPerRow,omitempty"`
	}
)

// OpenDashboard loads the dashboard with the given UID.
func (c *Client) OpenDashboard(ctx context.Context, uid string) (*Dashboard, error) {
	params := dashboards.NewGetDashboardByUIDParamsWithContext(ctx).
		WithTimeout(c.timeout).
		WithUID(uid)
	resp, err := c.api.Dashboards.GetDashboardByUIDWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("get dashboard %q: %w", uid, err)
	}
	if resp.Payload == nil || resp.Payload.Dashboard == nil {
		return nil, fmt.Errorf("get dashboard %q: empty response", uid)
	}
	raw, err := json.Marshal(resp.Payload.Dashboard)
	if err != nil {
		return nil, fmt.Errorf("encode dashboard %q: %w", uid, err)
	}
	d, err := newDashboard(c, uid, raw)
	if err != nil {
		return nil, err
	}
	if resp.Payload.Meta != nil {
		d.folderUID = resp.Payload.Meta.FolderUID
	}
	c.logger.Info(ctx, "dashboard loaded", "uid", uid, "title", d.title, "panels", len(d.existing))
	return d, nil
}

func newDashboard(c *Client, uid string, raw []byte) (*Dashboard, error) {
	var model map[string]any
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("decode dashboard %q: %w", uid, err)
	}
	if model == nil {
		return nil, fmt.Errorf("decode dashboard %q: not an object", uid)
	}
	return &Dashboard{
		client:   c,
		uid:      uid,
		title:    gjson.GetBytes(raw, "title").String(),
		model:    model,
		existing: existingIDs(raw),
		nextY:    bottom(raw),
		message:  DefaultSaveMessage,
	}, nil
}

// UID returns the dashboard UID.
func (d *Dashboard) UID() string {
	return d.uid
}

// Title returns the dashboard title.
func (d *Dashboard) Title() string {
	return d.title
}

// SetSaveMessage sets the version message recorded by ForceRender.
func (d *Dashboard) SetSaveMessage(msg string) {
	d.message = msg
}

// IsEditing implements scene.Dashboard.
func (d *Dashboard) IsEditing() bool {
	return d.editing
}

// EnterEditMode implements scene.Dashboard. Changes are only published by
// ForceRender.
func (d *Dashboard) EnterEditMode() {
	d.editing = true
}

// AddPanel implements scene.Dashboard. Panels without grid position are
// stacked below the existing panels.
func (d *Dashboard) AddPanel(p *scene.Panel) error {
	if p == nil {
		return errors.New("add panel: nil panel")
	}
	if slices.Contains(d.PanelIDs(), p.ID) {
		return fmt.Errorf("add panel: id %d already used in dashboard %q", p.ID, d.uid)
	}
	m := d.panelModel(p)
	if y := m.GridPos.Y + m.GridPos.H; y > d.nextY {
		d.nextY = y
	}
	var panel map[string]any
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode panel %d: %w", p.ID, err)
	}
	if err := json.Unmarshal(raw, &panel); err != nil {
		return fmt.Errorf("encode panel %d: %w", p.ID, err)
	}
	panels, _ := d.model["panels"].([]any)
	d.model["panels"] = append(panels, panel)
	d.added = append(d.added, p.ID)
	return nil
}

// ForceRender implements scene.Dashboard by saving the dashboard.
func (d *Dashboard) ForceRender() error {
	cmd := &models.SaveDashboardCommand{
		Dashboard: d.model,
		FolderUID: d.folderUID,
		Message:   d.message,
		Overwrite: true,
	}
	params := dashboards.NewPostDashboardParams().
		WithTimeout(d.client.timeout).
		WithBody(cmd)
	if _, err := d.client.api.Dashboards.PostDashboardWithParams(params); err != nil {
		return fmt.Errorf("save dashboard %q: %w", d.uid, err)
	}
	d.client.logger.Info(context.Background(), "dashboard saved", "uid", d.uid, "added_panel_ids", d.added)
	return nil
}

// PanelIDs implements scene.Dashboard.
func (d *Dashboard) PanelIDs() []int {
	return append(append([]int(nil), d.existing...), d.added...)
}

func (d *Dashboard) panelModel(p *scene.Panel) panelModel {
	m := panelModel{
		ID:          p.ID,
		Type:        p.PluginID,
		Title:       p.Title,
		Description: p.Description,
		Options:     lo.Ternary(p.Options != nil, p.Options, map[string]any{}),
		FieldConfig: p.FieldConfig,
		Transparent: p.DisplayMode == scene.DisplayTransparent,
		MaxPerRow:   p.MaxPerRow,
	}
	if p.GridPos != nil {
		m.GridPos = *p.GridPos
	} else {
		m.GridPos = schema.GridPos{H: schema.DefaultGridHeight, W: schema.DefaultGridWidth, Y: d.nextY}
	}
	if p.Data != nil {
		if r := p.Data.Runner; r != nil {
			m.Datasource = &schema.DataSourceRef{Type: r.DataSource.Type, UID: r.DataSource.UID}
			m.Targets = r.Queries
		}
		if t := p.Data.Transformer; t != nil {
			m.Transformations = t.Transformations
		}
	}
	if o := p.TimeOverride; o != nil {
		m.TimeFrom = o.TimeFrom
		m.TimeShift = o.TimeShift
		m.HideTimeOverride = o.HideTimeOverride
	}
	return m
}

// existingIDs lists the ids of top level panels and of panels nested in
// collapsed rows.
func existingIDs(raw []byte) []int {
	var ids []int
	collect := func(_, v gjson.Result) bool {
		if v.Exists() && v.Type == gjson.Number {
			ids = append(ids, int(v.Int()))
		}
		return true
	}
	gjson.GetBytes(raw, "panels.#.id").ForEach(collect)
	gjson.GetBytes(raw, "panels.#.panels.#.id").ForEach(func(_, row gjson.Result) bool {
		row.ForEach(collect)
		return true
	})
	return ids
}

// bottom returns the first free grid row below the top level panels.
func bottom(raw []byte) int {
	y := 0
	gjson.GetBytes(raw, "panels.#.gridPos").ForEach(func(_, gp gjson.Result) bool {
		if b := int(gp.Get("y").Int() + gp.Get("h").Int()); b > y {
			y = b
		}
		return true
	})
	return y
}

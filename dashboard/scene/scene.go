// Package scene defines the live panel object model produced from panel
// configurations and the narrow collaborator interfaces of the dashboard
// rendering subsystem: dashboards, their locators and data source resolvers.
package scene

import (
	"context"
	"strconv"

	"goa.design/dashpanels/dashboard/schema"
)

// DefaultTitle is the title given to panels configured without one.
const DefaultTitle = "New Panel"

// Behaviors attached to panel objects. The rendering subsystem binds each
// name to its implementation.
const (
	// BehaviorDashboardDataSource keeps a query runner in sync with the
	// dashboard data source selection.
	BehaviorDashboardDataSource Behavior = "dashboard-datasource"
	// BehaviorPanelLinks populates the links menu of a panel.
	BehaviorPanelLinks Behavior = "panel-links"
	// BehaviorPanelMenu populates the context menu of a panel.
	BehaviorPanelMenu Behavior = "panel-menu"
)

const (
	// DisplayOpaque renders the panel with its background.
	DisplayOpaque DisplayMode = "opaque"
	// DisplayTransparent renders the panel without background.
	DisplayTransparent DisplayMode = "transparent"
)

type (
	// Behavior names a behavior attached to a panel component.
	Behavior string

	// DisplayMode controls how the panel chrome is rendered.
	DisplayMode string

	// DataSource is a resolved data source handle.
	DataSource struct {
		UID  string
		Type string
		Name string
	}

	// Panel is a fully wired panel object ready to be attached to a dashboard.
	Panel struct {
		// Key is the dashboard unique key, see PanelKey.
		Key string
		// ID is the numeric panel identifier.
		ID                int
		Title             string
		Description       string
		PluginID          string
		Options           map[string]any
		FieldConfig       schema.FieldConfig
		DisplayMode       DisplayMode
		HoverHeader       bool
		HoverHeaderOffset int
		// Data is nil for panels without query targets.
		Data *DataPipeline
		// TimeOverride is nil unless the panel overrides the time range.
		TimeOverride *TimeOverride
		// GridPos and MaxPerRow are layout hints for dashboards that place
		// panels on a grid.
		GridPos    *schema.GridPos
		MaxPerRow  *int
		TitleItems TitleItems
		Menu       *ContextMenu
	}

	// DataPipeline feeds query results through transformations.
	DataPipeline struct {
		Runner      *QueryRunner
		Transformer *Transformer
	}

	// QueryRunner executes the panel queries against a default data source.
	QueryRunner struct {
		Queries    []schema.QueryTarget
		DataSource DataSource
		Behaviors  []Behavior
	}

	// Transformer applies transformations in order.
	Transformer struct {
		Transformations []schema.Transformation
	}

	// TimeOverride overrides the dashboard time range for one panel.
	TimeOverride struct {
		TimeFrom         string
		TimeShift        string
		HideTimeOverride bool
	}

	// TitleItems are the affordances rendered in the panel header.
	TitleItems struct {
		Links   *LinksMenu
		Notices *Notices
	}

	// LinksMenu lists the panel links.
	LinksMenu struct {
		Behaviors []Behavior
	}

	// Notices displays data notices raised by queries.
	Notices struct{}

	// ContextMenu is the panel context menu.
	ContextMenu struct {
		Behaviors []Behavior
	}

	// Dashboard is the subset of a live dashboard used to add panels. Dashboards
	// are not safe for concurrent use.
	Dashboard interface {
		// IsEditing reports whether the dashboard is in edit mode.
		IsEditing() bool
		// EnterEditMode switches the dashboard to edit mode.
		EnterEditMode()
		// AddPanel attaches p to the dashboard.
		AddPanel(p *Panel) error
		// ForceRender re-renders the dashboard.
		ForceRender() error
		// PanelIDs lists the identifiers of the attached panels.
		PanelIDs() []int
	}

	// Locator finds the dashboard the caller currently operates on.
	Locator interface {
		Dashboard(ctx context.Context) (Dashboard, bool)
	}

	// LocatorFunc adapts a function to Locator.
	LocatorFunc func(ctx context.Context) (Dashboard, bool)

	// DataSourceResolver resolves data source references to handles.
	DataSourceResolver interface {
		Resolve(ctx context.Context, ref schema.DataSourceRef) (DataSource, error)
	}

	// ContextLocator locates the dashboard bound to the context with
	// WithDashboard.
	ContextLocator struct{}

	ctxKey struct{}
)

// PanelKey returns the dashboard key of the panel with the given id.
func PanelKey(id int) string {
	return "panel-" + strconv.Itoa(id)
}

// Dashboard calls f.
func (f LocatorFunc) Dashboard(ctx context.Context) (Dashboard, bool) {
	return f(ctx)
}

// Dashboard returns the dashboard bound to ctx.
func (ContextLocator) Dashboard(ctx context.Context) (Dashboard, bool) {
	return FromContext(ctx)
}

// WithDashboard returns a copy of ctx bound to d.
func WithDashboard(ctx context.Context, d Dashboard) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext returns the dashboard bound to ctx, if any.
func FromContext(ctx context.Context) (Dashboard, bool) {
	d, ok := ctx.Value(ctxKey{}).(Dashboard)
	return d, ok && d != nil
}

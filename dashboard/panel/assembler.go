// Package panel assembles live panel objects from validated panel
// configurations.
package panel

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/samber/lo"

	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
	"goa.design/dashpanels/runtime/telemetry"
)

type (
	// Assembler builds scene panels from panel configurations. It only
	// talks to the data source resolver and never touches a dashboard.
	Assembler struct {
		resolver scene.DataSourceResolver
		logger   telemetry.Logger
	}

	// Option configures an Assembler.
	Option func(*Assembler)

	// ResolutionError reports a data source reference that could not be
	// resolved.
	ResolutionError struct {
		Ref schema.DataSourceRef
		Err error
	}
)

// WithLogger sets the assembler logger.
func WithLogger(l telemetry.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// New returns an assembler resolving data sources with resolver.
func New(resolver scene.DataSourceResolver, opts ...Option) *Assembler {
	a := &Assembler{resolver: resolver}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.logger == nil {
		a.logger = telemetry.NewNoopLogger()
	}
	return a
}

// Assemble builds the panel described by cfg with the given identifier. cfg
// is not modified; opaque maps are deep copied into the panel.
func (a *Assembler) Assemble(ctx context.Context, cfg *schema.PanelConfig, id int) (*scene.Panel, error) {
	if cfg == nil {
		return nil, errors.New("assemble panel: nil configuration")
	}
	options, err := deepCopy(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("assemble panel %d: copy options: %w", id, err)
	}
	fieldConfig, err := fieldConfigOf(cfg.FieldConfig)
	if err != nil {
		return nil, fmt.Errorf("assemble panel %d: copy field config: %w", id, err)
	}

	p := &scene.Panel{
		Key:               scene.PanelKey(id),
		ID:                id,
		Title:             lo.Ternary(cfg.Title != "", cfg.Title, scene.DefaultTitle),
		Description:       cfg.Description,
		PluginID:          cfg.PluginID,
		Options:           options,
		FieldConfig:       fieldConfig,
		DisplayMode:       lo.Ternary(cfg.Transparent, scene.DisplayTransparent, scene.DisplayOpaque),
		HoverHeader:       cfg.Title == "",
		HoverHeaderOffset: 0,
		TitleItems: scene.TitleItems{
			Links:   &scene.LinksMenu{Behaviors: []scene.Behavior{scene.BehaviorPanelLinks}},
			Notices: &scene.Notices{},
		},
		Menu: &scene.ContextMenu{Behaviors: []scene.Behavior{scene.BehaviorPanelMenu}},
	}
	if cfg.GridPos != nil {
		gp := *cfg.GridPos
		p.GridPos = &gp
	}
	if cfg.MaxPerRow != nil {
		n := *cfg.MaxPerRow
		p.MaxPerRow = &n
	}
	if len(cfg.Targets) > 0 {
		data, err := a.pipeline(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.Data = data
	}
	if cfg.HasTimeOverride() {
		p.TimeOverride = &scene.TimeOverride{
			TimeFrom:         cfg.TimeFrom,
			TimeShift:        cfg.TimeShift,
			HideTimeOverride: cfg.HideTimeOverride,
		}
	}
	return p, nil
}

func (a *Assembler) pipeline(ctx context.Context, cfg *schema.PanelConfig) (*scene.DataPipeline, error) {
	ref := cfg.Targets[0].Datasource
	if cfg.Datasource != nil {
		ref = *cfg.Datasource
	}
	if a.resolver == nil {
		return nil, &ResolutionError{Ref: ref, Err: errors.New("no data source resolver configured")}
	}
	ds, err := a.resolver.Resolve(ctx, ref)
	if err != nil {
		a.logger.Warn(ctx, "data source resolution failed", "uid", ref.UID, "type", ref.Type, "error", err.Error())
		return nil, &ResolutionError{Ref: ref, Err: err}
	}

	transformations := make([]schema.Transformation, 0, len(cfg.Transformations))
	for _, t := range cfg.Transformations {
		opts, err := deepCopy(t.Options)
		if err != nil {
			return nil, fmt.Errorf("copy options of transformation %q: %w", t.ID, err)
		}
		if opts == nil {
			opts = map[string]any{}
		}
		transformations = append(transformations, schema.Transformation{ID: t.ID, Options: opts})
	}

	return &scene.DataPipeline{
		Runner: &scene.QueryRunner{
			Queries:    lo.Map(cfg.Targets, func(t schema.QueryTarget, _ int) schema.QueryTarget { return t }),
			DataSource: ds,
			Behaviors:  []scene.Behavior{scene.BehaviorDashboardDataSource},
		},
		Transformer: &scene.Transformer{Transformations: transformations},
	}, nil
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve data source %s (%s): %v", e.Ref.UID, e.Ref.Type, e.Err)
}

// Unwrap returns the underlying resolver error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func fieldConfigOf(fc *schema.FieldConfig) (schema.FieldConfig, error) {
	out := schema.FieldConfig{Defaults: map[string]any{}, Overrides: []any{}}
	if fc == nil {
		return out, nil
	}
	defaults, err := deepCopy(fc.Defaults)
	if err != nil {
		return out, err
	}
	if defaults != nil {
		out.Defaults = defaults
	}
	if fc.Overrides != nil {
		c, err := copystructure.Copy(fc.Overrides)
		if err != nil {
			return out, err
		}
		out.Overrides = c.([]any)
	}
	return out, nil
}

func deepCopy(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(m)
	if err != nil {
		return nil, err
	}
	return c.(map[string]any), nil
}

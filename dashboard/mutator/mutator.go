// Package mutator adds batches of configured panels to a live dashboard. It
// is the single boundary converting every failure, panics included, into a
// Result.
package mutator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"

	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
	"goa.design/dashpanels/runtime/telemetry"
)

// Metric names recorded by the mutator.
const (
	MetricPanelsAdded   = "dashpanels.panels.added"
	MetricBatchFailed   = "dashpanels.batch.failed"
	MetricBatchDuration = "dashpanels.batch.duration"
)

// ErrNilDashboard is reported when AddPanels is called without a dashboard.
var ErrNilDashboard = errors.New("dashboard is nil")

type (
	// Assembler builds a scene panel from a validated configuration.
	Assembler interface {
		Assemble(ctx context.Context, cfg *schema.PanelConfig, id int) (*scene.Panel, error)
	}

	// Mutator adds panels to dashboards.
	Mutator struct {
		assembler Assembler
		ids       IDAllocator
		logger    telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
	}

	// Option configures a Mutator.
	Option func(*Mutator)

	// Result is the outcome of AddPanels.
	Result struct {
		// Success is true when every panel was attached and the dashboard
		// rendered.
		Success bool
		// PanelIDs lists the new identifiers in input order, empty on failure.
		PanelIDs []int
		// Message is one line per added panel, or the failure explanation.
		Message string
		// Err is the failure cause, nil on success.
		Err error
	}

	// SingleResult is the outcome of AddSinglePanel.
	SingleResult struct {
		Success bool
		PanelID int
		Message string
		Err     error
	}

	// batchRun tracks the progress of one AddPanels call so that a recovered
	// panic can report where it happened.
	batchRun struct {
		phase    string
		panelID  int
		attached []int
	}
)

// WithIDAllocator sets the panel identifier allocator. Defaults to RandomIDs.
func WithIDAllocator(a IDAllocator) Option {
	return func(m *Mutator) {
		m.ids = a
	}
}

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option {
	return func(m *Mutator) {
		m.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mt telemetry.Metrics) Option {
	return func(m *Mutator) {
		m.metrics = mt
	}
}

// WithTracer sets the tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(m *Mutator) {
		m.tracer = t
	}
}

// New returns a mutator building panels with assembler.
func New(assembler Assembler, opts ...Option) *Mutator {
	m := &Mutator{assembler: assembler}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.ids == nil {
		m.ids = RandomIDs{}
	}
	if m.logger == nil {
		m.logger = telemetry.NewNoopLogger()
	}
	if m.metrics == nil {
		m.metrics = telemetry.NewNoopMetrics()
	}
	if m.tracer == nil {
		m.tracer = telemetry.NewNoopTracer()
	}
	return m
}

// AddPanels validates raw as a panels batch, builds every panel and attaches
// them to d in input order, then renders d once. d enters edit mode first if
// needed. Panels attached before a failing attachment stay attached.
func (m *Mutator) AddPanels(ctx context.Context, d scene.Dashboard, raw any) Result {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "dashpanels.add_panels")
	defer span.End()

	run := &batchRun{phase: PhaseValidating}
	res := m.addPanels(ctx, d, raw, run)
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Message)
	}
	m.metrics.RecordTimer(MetricBatchDuration, time.Since(start), "outcome", outcome)
	return res
}

// AddSinglePanel adds the single panel configuration raw to d.
func (m *Mutator) AddSinglePanel(ctx context.Context, d scene.Dashboard, raw any) SingleResult {
	res := m.AddPanels(ctx, d, map[string]any{"panels": []any{singlePanel(raw)}})
	single := SingleResult{Success: res.Success, Message: res.Message, Err: res.Err}
	if len(res.PanelIDs) > 0 {
		single.PanelID = res.PanelIDs[0]
	}
	return single
}

func (m *Mutator) addPanels(ctx context.Context, d scene.Dashboard, raw any, run *batchRun) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			res = m.fail(ctx, run, &AttachmentError{
				Phase:    run.phase,
				PanelID:  run.panelID,
				Attached: append([]int(nil), run.attached...),
				Err:      fmt.Errorf("panic: %w", err),
			})
		}
	}()

	if d == nil {
		return m.fail(ctx, run, ErrNilDashboard)
	}
	batch, err := schema.Validate(raw)
	if err != nil {
		return m.fail(ctx, run, err)
	}

	run.phase = PhaseEnteringEditMode
	if !d.IsEditing() {
		d.EnterEditMode()
	}

	run.phase = PhaseAssembling
	panels, err := m.assemble(ctx, d, batch.Panels, run)
	if err != nil {
		return m.fail(ctx, run, err)
	}

	run.phase = PhaseAttaching
	for _, p := range panels {
		run.panelID = p.ID
		if err := d.AddPanel(p); err != nil {
			return m.fail(ctx, run, &AttachmentError{
				Phase:    PhaseAttaching,
				PanelID:  p.ID,
				Attached: append([]int(nil), run.attached...),
				Err:      err,
			})
		}
		run.attached = append(run.attached, p.ID)
	}

	run.phase = PhaseRendering
	if err := d.ForceRender(); err != nil {
		return m.fail(ctx, run, &AttachmentError{
			Phase:    PhaseRendering,
			Attached: append([]int(nil), run.attached...),
			Err:      err,
		})
	}

	lines := lo.Map(panels, func(p *scene.Panel, _ int) string {
		return fmt.Sprintf("Added panel \"%s\" with ID %d", p.Title, p.ID)
	})
	m.metrics.IncCounter(MetricPanelsAdded, float64(len(panels)))
	m.logger.Info(ctx, "panels added", "count", len(panels), "panel_ids", run.attached)
	return Result{
		Success:  true,
		PanelIDs: run.attached,
		Message:  strings.Join(lines, "\n"),
	}
}

// assemble builds all panels before any is attached.
func (m *Mutator) assemble(ctx context.Context, d scene.Dashboard, cfgs []*schema.PanelConfig, run *batchRun) ([]*scene.Panel, error) {
	used := make(map[int]struct{})
	for _, id := range d.PanelIDs() {
		used[id] = struct{}{}
	}
	panels := make([]*scene.Panel, 0, len(cfgs))
	for i, cfg := range cfgs {
		id, err := m.ids.Allocate(used)
		if err != nil {
			return nil, fmt.Errorf("allocate id for panel %d: %w", i, err)
		}
		used[id] = struct{}{}
		run.panelID = id
		p, err := m.assembler.Assemble(ctx, cfg, id)
		if err != nil {
			return nil, err
		}
		panels = append(panels, p)
	}
	return panels, nil
}

func (m *Mutator) fail(ctx context.Context, run *batchRun, err error) Result {
	kvs := []any{"phase", run.phase, "error", err.Error()}
	if len(run.attached) > 0 {
		kvs = append(kvs, "attached_panel_ids", run.attached)
	}
	m.logger.Warn(ctx, "add panels failed", kvs...)
	m.metrics.IncCounter(MetricBatchFailed, 1, "phase", run.phase)
	return Result{
		Success:  false,
		PanelIDs: []int{},
		Message:  "Failed to add panels: " + err.Error(),
		Err:      err,
	}
}

func singlePanel(raw any) any {
	switch v := raw.(type) {
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	default:
		return raw
	}
}

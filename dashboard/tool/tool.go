// Package tool exposes the panel mutator as the add_dashboard_panels tool
// that agent runtimes discover through a tool registry.
package tool

import (
	"context"
	"encoding/json"
	"errors"

	"goa.design/dashpanels/dashboard/mutator"
	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/schema"
	"goa.design/dashpanels/runtime/retry"
	"goa.design/dashpanels/runtime/telemetry"
	"goa.design/dashpanels/runtime/toolerrors"
	"goa.design/dashpanels/runtime/toolregistry"
	"goa.design/dashpanels/runtime/tools"
)

const (
	// Name is the registry name of the tool.
	Name tools.Ident = "add_dashboard_panels"
	// Description is the published tool description.
	Description = "Add panels to the dashboard"
	// Category is the registry category of the tool.
	Category = "utilities"
	// DefaultOwnerID is the owner the tool registers under by default.
	DefaultOwnerID = "dashpanels"
)

// Tags are the registry tags of the tool.
var Tags = []string{"dashboard", "panels"}

// ErrNoDashboard is returned when no dashboard can be located for the call.
var ErrNoDashboard = toolerrors.New(toolerrors.CodeNoContext,
	"No dashboard scene context found. This usually means the dashboard is not loaded.")

type (
	// Adder adds a batch of panels to a dashboard.
	Adder interface {
		AddPanels(ctx context.Context, d scene.Dashboard, raw any) mutator.Result
	}

	// Tool adapts an Adder to the tool contract.
	Tool struct {
		adder   Adder
		locator scene.Locator
		logger  telemetry.Logger
		ownerID string
		retry   retry.Config
	}

	// Option configures a Tool.
	Option func(*Tool)

	// Outcome is the single asynchronous result delivered by Go.
	Outcome struct {
		Message string
		Err     error
	}
)

// WithLocator sets the dashboard locator. Defaults to scene.ContextLocator.
func WithLocator(l scene.Locator) Option {
	return func(t *Tool) {
		t.locator = l
	}
}

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option {
	return func(t *Tool) {
		t.logger = l
	}
}

// WithOwnerID sets the owner identifier used at registration.
func WithOwnerID(id string) Option {
	return func(t *Tool) {
		t.ownerID = id
	}
}

// WithRetry sets the registration retry policy. Defaults to
// retry.DefaultConfig.
func WithRetry(cfg retry.Config) Option {
	return func(t *Tool) {
		t.retry = cfg
	}
}

// New returns the tool backed by adder.
func New(adder Adder, opts ...Option) *Tool {
	t := &Tool{
		adder:   adder,
		locator: scene.ContextLocator{},
		ownerID: DefaultOwnerID,
		retry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.logger == nil {
		t.logger = telemetry.NewNoopLogger()
	}
	return t
}

// Spec returns the published tool metadata.
func (t *Tool) Spec() tools.ToolSpec {
	return tools.ToolSpec{
		Name:        Name,
		Description: Description,
		Category:    Category,
		Tags:        append([]string(nil), Tags...),
		Payload: tools.TypeSpec{
			Name:   "AddPanelsBatch",
			Schema: schema.JSON(),
		},
	}
}

// Definition returns the registry definition of the tool.
func (t *Tool) Definition() toolregistry.Definition {
	return toolregistry.Definition{
		Spec: t.Spec(),
		Handler: toolregistry.HandlerFunc(func(ctx context.Context, payload json.RawMessage) (any, error) {
			return t.Invoke(ctx, payload)
		}),
	}
}

// Invoke adds the panels described by raw to the located dashboard and
// returns one line per added panel. Failures are *toolerrors.ToolError
// values: ErrNoDashboard when no dashboard is available, CodeInvalidParams
// for invalid configurations and CodeExecutionFailed otherwise.
func (t *Tool) Invoke(ctx context.Context, raw any) (string, error) {
	d, ok := t.locator.Dashboard(ctx)
	if !ok {
		t.logger.Warn(ctx, "no dashboard to add panels to", "tool", Name.String())
		return "", ErrNoDashboard
	}
	res := t.adder.AddPanels(ctx, d, raw)
	if res.Success {
		return res.Message, nil
	}
	var verr *schema.ValidationError
	if errors.As(res.Err, &verr) {
		terr := toolerrors.NewWithCause(toolerrors.CodeInvalidParams, res.Message, res.Err)
		terr.Issues = verr.FieldIssues()
		return "", terr
	}
	return "", toolerrors.NewWithCause(toolerrors.CodeExecutionFailed, res.Message, res.Err)
}

// Go runs Invoke asynchronously. The returned channel receives exactly one
// outcome and is then closed.
func (t *Tool) Go(ctx context.Context, raw any) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- Outcome{Err: toolerrors.Errorf(toolerrors.CodeExecutionFailed, "add dashboard panels: %v", r)}
			}
		}()
		msg, err := t.Invoke(ctx, raw)
		ch <- Outcome{Message: msg, Err: err}
	}()
	return ch
}

// Register registers the tool with reg once reg is ready, then logs the
// registry contents. It returns the registry listing.
func (t *Tool) Register(ctx context.Context, reg *toolregistry.Registry) (string, error) {
	meta := toolregistry.Metadata{Category: Category, Tags: append([]string(nil), Tags...)}
	if err := toolregistry.RegisterWhenReady(ctx, reg, t.Definition(), t.ownerID, meta, t.retry); err != nil {
		return "", err
	}
	return reg.Debug(ctx), nil
}

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/dashpanels/dashboard/mutator"
	"goa.design/dashpanels/dashboard/panel"
	"goa.design/dashpanels/dashboard/scene"
	"goa.design/dashpanels/dashboard/scene/inmem"
	"goa.design/dashpanels/runtime/retry"
	"goa.design/dashpanels/runtime/toolerrors"
	"goa.design/dashpanels/runtime/toolregistry"
)

const examplePayload = `{"panels":[{"pluginId":"timeseries","targets":[{"expr":"up","datasource":{"type":"prometheus","uid":"ds1"}}]}]}`

type panickingAdder struct{}

func (panickingAdder) AddPanels(context.Context, scene.Dashboard, any) mutator.Result {
	panic("renderer gone")
}

func newTool(opts ...Option) *Tool {
	resolver := panel.NewStaticResolver(scene.DataSource{UID: "ds1", Type: "prometheus"})
	m := mutator.New(panel.New(resolver), mutator.WithIDAllocator(mutator.SequentialIDs{}))
	return New(m, opts...)
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestInvoke(t *testing.T) {
	d := inmem.New("ops")
	ctx := scene.WithDashboard(context.Background(), d)

	msg, err := newTool().Invoke(ctx, examplePayload)
	require.NoError(t, err)
	assert.Equal(t, `Added panel "New Panel" with ID 1`, msg)
	assert.Equal(t, []int{1}, d.PanelIDs())
}

func TestInvokeNoDashboard(t *testing.T) {
	_, err := newTool().Invoke(context.Background(), examplePayload)
	require.ErrorIs(t, err, ErrNoDashboard)
	assert.Equal(t, toolerrors.CodeNoContext, toolerrors.CodeOf(err))
	assert.Equal(t, "No dashboard scene context found. This usually means the dashboard is not loaded.", err.Error())
}

func TestInvokeValidationFailure(t *testing.T) {
	d := inmem.New("ops")
	ctx := scene.WithDashboard(context.Background(), d)

	_, err := newTool().Invoke(ctx, `{"panels":[]}`)
	var terr *toolerrors.ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, toolerrors.CodeInvalidParams, terr.Code)
	assert.True(t, strings.HasPrefix(terr.Message, "Failed to add panels: "))
	require.Len(t, terr.Issues, 1)
	assert.Equal(t, "/panels", terr.Issues[0].Field)
	assert.Equal(t, "invalid_length", terr.Issues[0].Constraint)
	assert.NotErrorIs(t, err, ErrNoDashboard)
}

func TestInvokeExecutionFailure(t *testing.T) {
	ctx := scene.WithDashboard(context.Background(), inmem.New("ops"))
	_, err := newTool().Invoke(ctx, `{"panels":[{"pluginId":"stat","targets":[{"expr":"up","datasource":{"type":"loki","uid":"nope"}}]}]}`)
	assert.Equal(t, toolerrors.CodeExecutionFailed, toolerrors.CodeOf(err))
	var rerr *panel.ResolutionError
	assert.ErrorAs(t, err, &rerr)
}

func TestGo(t *testing.T) {
	ctx := scene.WithDashboard(context.Background(), inmem.New("ops"))

	out := <-newTool().Go(ctx, examplePayload)
	require.NoError(t, out.Err)
	assert.Contains(t, out.Message, "Added panel")

	ch := newTool().Go(context.Background(), examplePayload)
	out = <-ch
	assert.ErrorIs(t, out.Err, ErrNoDashboard)
	_, open := <-ch
	assert.False(t, open)

	out = <-New(panickingAdder{}).Go(ctx, examplePayload)
	assert.Equal(t, toolerrors.CodeExecutionFailed, toolerrors.CodeOf(out.Err))
}

func TestWithLocator(t *testing.T) {
	d := inmem.New("ops")
	loc := scene.LocatorFunc(func(context.Context) (scene.Dashboard, bool) { return d, true })
	_, err := newTool(WithLocator(loc)).Invoke(context.Background(), examplePayload)
	require.NoError(t, err)
	assert.Len(t, d.PanelIDs(), 1)
}

func TestSpec(t *testing.T) {
	spec := newTool().Spec()
	assert.Equal(t, Name, spec.Name)
	assert.Equal(t, "add_dashboard_panels", spec.Name.String())
	assert.Equal(t, "Add panels to the dashboard", spec.Description)
	assert.Equal(t, "utilities", spec.Category)
	assert.Equal(t, []string{"dashboard", "panels"}, spec.Tags)
	assert.True(t, json.Valid(spec.Payload.Schema))
}

func TestRegisterWaitsForReadiness(t *testing.T) {
	reg := toolregistry.New()
	go func() {
		time.Sleep(3 * time.Millisecond)
		reg.MarkReady()
	}()

	listing, err := newTool(WithOwnerID("test-plugin"), WithRetry(fastRetry())).Register(context.Background(), reg)
	require.NoError(t, err)
	assert.Contains(t, listing, "add_dashboard_panels\towner=test-plugin\tcategory=utilities\ttags=dashboard,panels")

	r, ok := reg.Lookup(Name)
	require.True(t, ok)
	assert.Equal(t, "test-plugin", r.OwnerID)
}

func TestRegisterGivesUp(t *testing.T) {
	_, err := newTool(WithRetry(fastRetry())).Register(context.Background(), toolregistry.New())
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.True(t, errors.Is(err, toolregistry.ErrNotReady))
}

func TestCallThroughRegistry(t *testing.T) {
	reg := toolregistry.New(toolregistry.WithReady())
	_, err := newTool().Register(context.Background(), reg)
	require.NoError(t, err)

	d := inmem.New("ops")
	ctx := scene.WithDashboard(context.Background(), d)

	res := reg.Invoke(ctx, Name, json.RawMessage(examplePayload))
	require.Nil(t, res.Error)
	var msg string
	require.NoError(t, json.Unmarshal(res.Result, &msg))
	assert.Equal(t, `Added panel "New Panel" with ID 1`, msg)

	res = reg.Invoke(ctx, Name, json.RawMessage(`{"panels":[{"pluginId":"stat","gridPos":{"h":25}}]}`))
	require.NotNil(t, res.Error)
	assert.Equal(t, "invalid_params", res.Error.Code)
	require.Len(t, res.Error.Issues, 1)
	assert.Equal(t, "/panels/0/gridPos/h", res.Error.Issues[0].Field)

	res = reg.Invoke(context.Background(), Name, json.RawMessage(examplePayload))
	require.NotNil(t, res.Error)
	assert.Equal(t, "no_context", res.Error.Code)
}

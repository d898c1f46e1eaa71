// Package toolregistry implements an in-process tool registry: tools are
// registered with an owner and discovery metadata, listed for agent runtimes
// and invoked through the ToolCallMessage/ToolResultMessage wire types.
package toolregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"goa.design/dashpanels/runtime/telemetry"
	"goa.design/dashpanels/runtime/toolerrors"
	"goa.design/dashpanels/runtime/tools"
)

var (
	// ErrNotReady is returned by RegisterTool before MarkReady was called.
	ErrNotReady = errors.New("tool registry is not ready")
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

type (
	// Handler executes a tool call. The returned value is encoded as the JSON
	// result of the call.
	Handler interface {
		HandleToolCall(ctx context.Context, payload json.RawMessage) (any, error)
	}

	// HandlerFunc adapts a function to Handler.
	HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

	// Definition binds a tool spec to its handler.
	Definition struct {
		Spec    tools.ToolSpec
		Handler Handler
	}

	// Metadata carries discovery metadata supplied at registration time.
	Metadata struct {
		Category string
		Tags     []string
	}

	// Registration is a snapshot of one registered tool.
	Registration struct {
		Definition   Definition
		OwnerID      string
		Metadata     Metadata
		RegisteredAt time.Time
	}

	// Registry holds registered tools. It is safe for concurrent use.
	Registry struct {
		mu         sync.RWMutex
		entries    map[tools.Ident]*entry
		ready      chan struct{}
		once       sync.Once
		logger     telemetry.Logger
		limit      rate.Limit
		burst      int
		now        func() time.Time
		startReady bool
	}

	// Option configures a Registry.
	Option func(*Registry)

	entry struct {
		reg     Registration
		limiter *rate.Limiter
	}
)

// HandleToolCall calls f.
func (f HandlerFunc) HandleToolCall(ctx context.Context, payload json.RawMessage) (any, error) {
	return f(ctx, payload)
}

// WithLogger sets the registry logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRateLimit limits calls to each registered tool to limit per second with
// the given burst. Calls beyond the limit fail with CodeRateLimited.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Registry) {
		r.limit = limit
		r.burst = burst
	}
}

// WithReady creates the registry in the ready state.
func WithReady() Option {
	return func(r *Registry) {
		r.startReady = true
	}
}

// New creates an empty registry. Tools may only be registered once the
// registry is ready, see MarkReady.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[tools.Ident]*entry),
		ready:   make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = telemetry.NewNoopLogger()
	}
	if r.startReady {
		r.MarkReady()
	}
	return r
}

// Ready returns a channel closed once the registry accepts registrations.
func (r *Registry) Ready() <-chan struct{} {
	return r.ready
}

// MarkReady signals that the registry accepts registrations. It is safe to
// call more than once.
func (r *Registry) MarkReady() {
	r.once.Do(func() { close(r.ready) })
}

// RegisterTool registers def under ownerID with the given metadata.
func (r *Registry) RegisterTool(def Definition, ownerID string, meta Metadata) error {
	select {
	case <-r.ready:
	default:
		return ErrNotReady
	}
	if def.Spec.Name == "" {
		return errors.New("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q: handler is required", def.Spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[def.Spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Spec.Name)
	}
	e := &entry{reg: Registration{
		Definition:   def,
		OwnerID:      ownerID,
		Metadata:     Metadata{Category: meta.Category, Tags: append([]string(nil), meta.Tags...)},
		RegisteredAt: r.now(),
	}}
	if r.limit > 0 {
		e.limiter = rate.NewLimiter(r.limit, r.burst)
	}
	r.entries[def.Spec.Name] = e
	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name tools.Ident) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Registration{}, false
	}
	return e.reg, true
}

// Tools returns all registrations sorted by tool name.
func (r *Registry) Tools() []Registration {
	r.mu.RLock()
	regs := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		regs = append(regs, e.reg)
	}
	r.mu.RUnlock()
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Definition.Spec.Name < regs[j].Definition.Spec.Name
	})
	return regs
}

// Debug logs every registration at debug level and returns the same listing
// as text, one tool per line.
func (r *Registry) Debug(ctx context.Context) string {
	var sb strings.Builder
	for _, reg := range r.Tools() {
		spec := reg.Definition.Spec
		r.logger.Debug(ctx, "registered tool",
			"tool", spec.Name.String(),
			"owner", reg.OwnerID,
			"category", reg.Metadata.Category,
			"tags", strings.Join(reg.Metadata.Tags, ","))
		fmt.Fprintf(&sb, "%s\towner=%s\tcategory=%s\ttags=%s\t%s\n",
			spec.Name, reg.OwnerID, reg.Metadata.Category, strings.Join(reg.Metadata.Tags, ","), spec.Description)
	}
	return sb.String()
}

// Invoke calls tool with payload using a generated tool use ID.
func (r *Registry) Invoke(ctx context.Context, tool tools.Ident, payload json.RawMessage) ToolResultMessage {
	return r.Call(ctx, NewToolCallMessage(uuid.NewString(), tool, payload, nil))
}

// Call dispatches msg to the registered handler. Failures are reported in
// the result message, never returned or panicked.
func (r *Registry) Call(ctx context.Context, msg ToolCallMessage) ToolResultMessage {
	if msg.ToolUseID == "" {
		msg.ToolUseID = uuid.NewString()
	}
	r.mu.RLock()
	e, ok := r.entries[msg.Tool]
	r.mu.RUnlock()
	if !ok {
		return NewToolResultErrorMessage(msg.ToolUseID, string(toolerrors.CodeUnknownTool),
			fmt.Sprintf("tool %q is not registered", msg.Tool), nil)
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return NewToolResultErrorMessage(msg.ToolUseID, string(toolerrors.CodeRateLimited),
			fmt.Sprintf("tool %q is rate limited", msg.Tool), nil)
	}

	r.logger.Debug(ctx, "tool call", "tool", msg.Tool.String(), "tool_use_id", msg.ToolUseID)
	res, err := e.reg.Definition.Handler.HandleToolCall(ctx, msg.Payload)
	if err != nil {
		var issues []tools.FieldIssue
		var te *toolerrors.ToolError
		if errors.As(err, &te) {
			issues = te.Issues
		}
		r.logger.Warn(ctx, "tool call failed", "tool", msg.Tool.String(), "tool_use_id", msg.ToolUseID, "error", err.Error())
		return NewToolResultErrorMessage(msg.ToolUseID, string(toolerrors.CodeOf(err)), err.Error(), issues)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return NewToolResultErrorMessage(msg.ToolUseID, string(toolerrors.CodeExecutionFailed),
			fmt.Sprintf("encode result: %v", err), nil)
	}
	return NewToolResultMessage(msg.ToolUseID, raw)
}

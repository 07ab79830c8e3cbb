package continuity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/session"
)

// ErrUnknownTool is returned for calls naming a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Tools    *execution.Toolset
	Registry *session.Registry

	// Cache holds state between requests. A nil Cache selects the local
	// deployment: one Context lives for the whole process.
	Cache Cache

	// MaxRetries is passed to Cache.Save; zero uses the cache default.
	MaxRetries int

	// ScopeDefaultSession gives every tenant its own default session in the
	// remote deployment, named with session.ScopedID. Without it tenants that
	// name no session share the configured default browser.
	ScopeDefaultSession bool

	Execution execution.Options
	Logger    *logging.Logger
}

// Dispatcher runs tool calls for tenants.
//
// In the remote deployment every call gets a fresh execution.Context rebuilt
// from the Cache and saved back after the call. In the local deployment a
// single Context is reused and calls are serialized.
type Dispatcher struct {
	tools      *execution.Toolset
	registry   *session.Registry
	cache      Cache
	maxRetries int
	execOpts   execution.Options
	scoped     bool
	logger     *logging.Logger

	mu    sync.Mutex
	local *execution.Context
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Tools == nil {
		return nil, fmt.Errorf("toolset is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	d := &Dispatcher{
		tools:      opts.Tools,
		registry:   opts.Registry,
		cache:      opts.Cache,
		maxRetries: opts.MaxRetries,
		execOpts:   opts.Execution,
		scoped:     opts.ScopeDefaultSession,
		logger:     opts.Logger,
	}
	if d.cache == nil {
		d.local = execution.New(d.registry, d.execOpts, d.logger.Named("execution"))
	}
	return d, nil
}

// Tools returns the registered tools.
func (d *Dispatcher) Tools() *execution.Toolset {
	return d.tools
}

// Remote reports whether state is kept in the cache between calls.
func (d *Dispatcher) Remote() bool {
	return d.cache != nil
}

// Call runs the tool name for tenant. Tool-level failures are reported in
// the Result; an error is returned only for unknown tools and bookkeeping
// faults.
func (d *Dispatcher) Call(ctx context.Context, tenant, name string, args json.RawMessage) (*execution.Result, error) {
	tool, ok := d.tools.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if d.cache == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.prepareSnapshot(d.local, tool, args)
		return d.local.Run(ctx, tool, args)
	}

	kind := tool.Kind()
	if kind == execution.KindSessionCreate {
		if err := d.cache.Delete(ctx, tenant); err != nil {
			d.logger.Warnf("failed to clear cached state for %s: %v", tenant, err)
		}
	}

	c := d.rehydrate(ctx, tenant)
	d.prepareSnapshot(c, tool, args)

	result, err := c.Run(ctx, tool, args)
	if err != nil {
		return nil, err
	}

	if kind == execution.KindSessionClose {
		if err := d.cache.Delete(ctx, tenant); err != nil {
			d.logger.Warnf("failed to clear cached state for %s: %v", tenant, err)
		}
		return result, nil
	}
	if err := d.cache.Save(ctx, tenant, Capture(c), d.maxRetries); err != nil {
		d.logger.Warnf("failed to save state for %s, next call starts cold: %v", tenant, err)
	}
	return result, nil
}

// rehydrate builds a Context from the cached projection of tenant. A load
// failure yields an empty Context.
func (d *Dispatcher) rehydrate(ctx context.Context, tenant string) *execution.Context {
	opts := d.execOpts
	if d.scoped {
		opts.DefaultSessionID = session.ScopedID(opts.DefaultSessionID, tenant)
	}
	c := execution.New(d.registry, opts, d.logger.Named("execution"))
	p, err := d.cache.Load(ctx, tenant)
	if err != nil {
		d.logger.Warnf("failed to load cached state for %s: %v", tenant, err)
		return c
	}
	if p != nil {
		p.Restore(c, d.logger)
		d.logger.Debugf("rehydrated %s: session %s, %d snapshots, %d resources",
			tenant, c.CurrentSessionID(), len(p.Snapshots), len(p.Resources))
	}
	return c
}

// prepareSnapshot makes sure tools that act on element references see a
// connected snapshot of the session they target.
func (d *Dispatcher) prepareSnapshot(c *execution.Context, tool *execution.CompiledTool, args json.RawMessage) {
	switch tool.Kind() {
	case execution.KindSessionCreate, execution.KindSessionClose, execution.KindSnapshot, execution.KindNavigate:
		return
	}

	id := c.CurrentSessionID()
	var target struct {
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(args, &target) == nil && target.SessionID != "" {
		id = target.SessionID
	}
	if !c.ReconnectSnapshot(id) {
		d.logger.Debugf("%s: no snapshot available for session %s", tool.Name(), id)
	}
}

// ListResources returns the resources of tenant.
func (d *Dispatcher) ListResources(ctx context.Context, tenant string) []execution.Resource {
	if d.cache == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.local.ListResources()
	}
	return d.rehydrate(ctx, tenant).ListResources()
}

// ReadResource returns the resource of tenant addressed by uri.
func (d *Dispatcher) ReadResource(ctx context.Context, tenant, uri string) (execution.Resource, error) {
	if _, _, err := execution.ParseResourceURI(uri); err != nil {
		return execution.Resource{}, err
	}
	if d.cache == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.local.ReadResource(uri)
	}
	return d.rehydrate(ctx, tenant).ReadResource(uri)
}

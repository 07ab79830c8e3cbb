// Package execution holds the per-session working state of the server and
// runs tools against it.
//
// A Context records which session the next call targets, the latest snapshot
// of each session and the resources produced so far. In a remote deployment
// a Context lives for one request and is rebuilt from the continuity store;
// in a local deployment one Context lives for the whole process. Either way a
// Context is owned by one caller at a time and is not safe for concurrent use.
package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/session"
	"github.com/entrhq/browserbase-mcp/pkg/snapshot"
)

// ErrNoSnapshot is returned when a tool needs element references but the
// current session has no snapshot.
var ErrNoSnapshot = errors.New("no snapshot available for the current session; call browserbase_snapshot first")

// Options configures a Context.
type Options struct {
	// DefaultSessionID is the session targeted when a call names none.
	DefaultSessionID string

	// SettleDelay is waited after a successful action before capturing the
	// post-action snapshot.
	SettleDelay time.Duration

	// MaxSnapshotChars truncates snapshot text in results. Zero disables
	// truncation.
	MaxSnapshotChars int

	// SessionDefaults are used by tools that create sessions.
	SessionDefaults driver.SessionOptions
}

// Context is one logical session's working state.
type Context struct {
	registry *session.Registry
	opts     Options
	logger   *logging.Logger

	currentSessionID string
	snapshots        map[string]*snapshot.Snapshot
	resources        map[string]Resource
	resourceOrder    []string
}

// New creates an empty Context resolving sessions through registry.
func New(registry *session.Registry, opts Options, logger *logging.Logger) *Context {
	return &Context{
		registry:         registry,
		opts:             opts,
		logger:           logger,
		currentSessionID: opts.DefaultSessionID,
		snapshots:        make(map[string]*snapshot.Snapshot),
		resources:        make(map[string]Resource),
	}
}

// Registry returns the session registry.
func (c *Context) Registry() *session.Registry {
	return c.registry
}

// Options returns the context configuration.
func (c *Context) Options() Options {
	return c.opts
}

// Logger returns the context logger.
func (c *Context) Logger() *logging.Logger {
	return c.logger
}

// CurrentSessionID returns the session the next call targets.
func (c *Context) CurrentSessionID() string {
	return c.currentSessionID
}

// SetCurrentSessionID points the context at id.
func (c *Context) SetCurrentSessionID(id string) {
	c.currentSessionID = id
}

// Page resolves the active page of the current session.
func (c *Context) Page() (driver.Page, error) {
	return c.PageFor(c.currentSessionID)
}

// PageFor resolves the active page of session id.
func (c *Context) PageFor(id string) (driver.Page, error) {
	s, err := c.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	page, err := s.Browser.Page()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if page.IsClosed() {
		return nil, fmt.Errorf("session %s: page is closed", id)
	}
	return page, nil
}

// livePage returns the page of the current session if it is tracked, without
// attaching or creating a browser.
func (c *Context) livePage() (driver.Page, error) {
	s, ok := c.registry.Get(c.currentSessionID)
	if !ok || !s.Browser.IsConnected() {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, c.currentSessionID)
	}
	page, err := s.Browser.Page()
	if err != nil {
		return nil, err
	}
	if page.IsClosed() {
		return nil, fmt.Errorf("session %s: page is closed", c.currentSessionID)
	}
	return page, nil
}

// Snapshot returns the latest snapshot of the current session, or nil.
func (c *Context) Snapshot() *snapshot.Snapshot {
	return c.snapshots[c.currentSessionID]
}

// SnapshotFor returns the latest snapshot of session id, or nil.
func (c *Context) SnapshotFor(id string) *snapshot.Snapshot {
	return c.snapshots[id]
}

// SetSnapshot records s as the latest snapshot of session id.
func (c *Context) SetSnapshot(id string, s *snapshot.Snapshot) {
	if s == nil {
		delete(c.snapshots, id)
		return
	}
	c.snapshots[id] = s
}

// ClearSnapshot forgets the snapshot of session id.
func (c *Context) ClearSnapshot(id string) {
	delete(c.snapshots, id)
}

// Snapshots returns a copy of the snapshot map.
func (c *Context) Snapshots() map[string]*snapshot.Snapshot {
	out := make(map[string]*snapshot.Snapshot, len(c.snapshots))
	for id, s := range c.snapshots {
		out[id] = s
	}
	return out
}

// CaptureSnapshot captures the current session's page and records the
// result. On any failure the session's stale snapshot is cleared and nil is
// returned; callers treat nil as "no snapshot available".
func (c *Context) CaptureSnapshot() *snapshot.Snapshot {
	id := c.currentSessionID
	page, err := c.PageFor(id)
	if err != nil {
		c.logger.Warnf("snapshot skipped for session %s: %v", id, err)
		c.ClearSnapshot(id)
		return nil
	}
	snap, err := snapshot.Capture(page)
	if err != nil {
		c.logger.Warnf("snapshot failed for session %s: %v", id, err)
		c.ClearSnapshot(id)
		return nil
	}
	c.snapshots[id] = snap
	return snap
}

// ReconnectSnapshot makes the snapshot of session id usable for reference
// resolution. A disconnected snapshot is reconnected to the live page; a
// missing one is captured. It reports whether a connected snapshot is
// available afterwards.
func (c *Context) ReconnectSnapshot(id string) bool {
	snap := c.snapshots[id]
	if snap != nil && !snap.Disconnected() {
		return true
	}

	if snap == nil {
		previous := c.currentSessionID
		c.currentSessionID = id
		defer func() { c.currentSessionID = previous }()
		return c.CaptureSnapshot() != nil
	}

	page, err := c.PageFor(id)
	if err != nil {
		c.logger.Debugf("cannot reconnect snapshot for session %s: %v", id, err)
		return false
	}
	snap.Reconnect(page)
	c.logger.Debugf("reconnected snapshot for session %s", id)
	return true
}

// ResolveElement resolves a snapshot reference in the current session.
func (c *Context) ResolveElement(ref string) (driver.Element, error) {
	snap := c.Snapshot()
	if snap == nil {
		return nil, &snapshot.ReferenceError{Ref: ref, Err: ErrNoSnapshot}
	}
	return snap.ResolveReference(ref)
}

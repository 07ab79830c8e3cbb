// Package session tracks the live automation sessions of the current process.
//
// The Registry exists so a process does not leak browser handles: it records
// every browser created or attached, resolves session ids to live browsers,
// and releases them on close or shutdown. It has no cross-process durability;
// continuity across processes is the job of pkg/continuity.
//
// A Registry is constructed once per process and passed to whatever needs to
// resolve sessions.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

var (
	// ErrSessionNotFound is returned when a session id has no live browser and
	// cannot be attached.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMaxSessions is returned when creating a session would exceed the limit.
	ErrMaxSessions = errors.New("maximum number of sessions reached")
)

// Session is a tracked live browser.
type Session struct {
	ID         string
	Browser    driver.Browser
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Options configures a Registry.
type Options struct {
	MaxSessions int
	IdleTimeout time.Duration

	// DefaultSessionID is created on demand by Resolve, as are its
	// tenant-scoped forms built with ScopedID.
	DefaultSessionID string

	// Defaults are applied to sessions created on demand.
	Defaults driver.SessionOptions
}

// Registry manages all live browser sessions of the process.
type Registry struct {
	mu       sync.Mutex
	factory  driver.Factory
	opts     Options
	sessions map[string]*Session
	order    []string
	logger   *logging.Logger

	// pending holds ids whose browser is being created or attached. It is
	// closed when the attempt finishes.
	pending map[string]chan struct{}
}

// NewRegistry creates a registry that creates and attaches browsers through factory.
func NewRegistry(factory driver.Factory, opts Options, logger *logging.Logger) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 5
	}
	return &Registry{
		factory:  factory,
		opts:     opts,
		sessions: make(map[string]*Session),
		pending:  make(map[string]chan struct{}),
		logger:   logger,
	}
}

// ScopedID returns the default session id of tenant. An empty tenant keeps
// base unchanged.
func ScopedID(base, tenant string) string {
	if tenant == "" {
		return base
	}
	return base + TenantSeparator + tenant
}

// TenantSeparator joins a default session id and a tenant in ScopedID.
const TenantSeparator = "@"

// isDefault reports whether id is the default session id or a tenant-scoped
// form of it.
func (r *Registry) isDefault(id string) bool {
	d := r.opts.DefaultSessionID
	if d == "" || id == "" {
		return false
	}
	return id == d || strings.HasPrefix(id, d+TenantSeparator)
}

// Create starts a new browser session. An empty opts.ID gets a generated id.
// Creating an id that is already live replaces the previous browser, which is
// closed. Concurrent creations of one id run one after the other.
func (r *Registry) Create(opts driver.SessionOptions) (*Session, error) {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}

	r.mu.Lock()
	r.reserveLocked(opts.ID)
	if err := r.checkLimitLocked(opts.ID); err != nil {
		r.finishLocked(opts.ID, nil)
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	// The factory may block on browser startup; do not hold the lock.
	browser, err := r.factory.Create(opts)
	if err != nil {
		browser = nil
	}

	r.mu.Lock()
	s, replaced := r.finishLocked(opts.ID, browser)
	r.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", opts.ID, err)
	}
	if replaced != nil {
		r.release(replaced)
	}
	r.logger.Infof("created session %s", s.ID)
	return s, nil
}

// reserveLocked waits until no other attempt on id is in flight, then marks
// id as in flight. r.mu is held on entry and on return.
func (r *Registry) reserveLocked(id string) {
	for {
		done, busy := r.pending[id]
		if !busy {
			break
		}
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}
	r.pending[id] = make(chan struct{})
}

// checkLimitLocked fails when a new browser for id would exceed MaxSessions.
// Ids in flight count as sessions.
func (r *Registry) checkLimitLocked(id string) error {
	if _, exists := r.sessions[id]; exists {
		return nil
	}
	occupied := len(r.sessions)
	for pid := range r.pending {
		if _, tracked := r.sessions[pid]; !tracked && pid != id {
			occupied++
		}
	}
	if occupied >= r.opts.MaxSessions {
		return fmt.Errorf("%w (%d)", ErrMaxSessions, r.opts.MaxSessions)
	}
	return nil
}

// finishLocked ends the attempt on id and tracks browser when it is not nil.
// It returns the new session and the session it replaced, which the caller
// must release after unlocking.
func (r *Registry) finishLocked(id string, browser driver.Browser) (s, replaced *Session) {
	if done, ok := r.pending[id]; ok {
		close(done)
		delete(r.pending, id)
	}
	if browser == nil {
		return nil, nil
	}

	now := time.Now()
	s = &Session{ID: id, Browser: browser, CreatedAt: now, LastUsedAt: now}
	replaced = r.sessions[id]
	if replaced == nil {
		r.order = append(r.order, id)
	}
	r.sessions[id] = s
	return s, replaced
}

// liveLocked returns the tracked connected session for id.
func (r *Registry) liveLocked(id string) *Session {
	s, ok := r.sessions[id]
	if !ok || !s.Browser.IsConnected() {
		return nil
	}
	s.LastUsedAt = time.Now()
	return s
}

// Resolve returns the live session for id.
//
// A tracked session whose browser disconnected is dropped. An untracked id is
// attached through the factory when possible; the default session id is
// created on demand. Concurrent resolutions of one id share a single browser.
func (r *Registry) Resolve(id string) (*Session, error) {
	r.mu.Lock()
	if s := r.liveLocked(id); s != nil {
		r.mu.Unlock()
		return s, nil
	}
	r.reserveLocked(id)
	if s := r.liveLocked(id); s != nil {
		r.finishLocked(id, nil)
		r.mu.Unlock()
		return s, nil
	}
	stale := r.sessions[id]
	if stale != nil {
		r.untrack(id)
	}
	r.mu.Unlock()

	if stale != nil {
		r.logger.Warnf("session %s disconnected, dropping it", id)
		r.release(stale)
	}

	browser, err := r.attachOrCreate(id)
	if err != nil {
		browser = nil
	}

	r.mu.Lock()
	s, replaced := r.finishLocked(id, browser)
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if replaced != nil {
		r.release(replaced)
	}
	return s, nil
}

// attachOrCreate opens a browser for an untracked id reserved by the caller.
func (r *Registry) attachOrCreate(id string) (driver.Browser, error) {
	browser, err := r.factory.Attach(id)
	if err == nil {
		r.logger.Infof("attached session %s", id)
		return browser, nil
	}
	if !errors.Is(err, driver.ErrAttachUnsupported) {
		r.logger.Warnf("failed to attach session %s: %v", id, err)
	}

	if !r.isDefault(id) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	r.mu.Lock()
	err = r.checkLimitLocked(id)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	opts := r.opts.Defaults
	opts.ID = id
	browser, err = r.factory.Create(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	r.logger.Infof("created session %s", id)
	return browser, nil
}

// Get returns the tracked session for id without attaching or creating.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close removes s from the registry and releases its browser. Closing a
// session that is no longer tracked is a no-op.
func (r *Registry) Close(s *Session) {
	if s == nil {
		return
	}

	r.mu.Lock()
	current, ok := r.sessions[s.ID]
	if !ok || current != s {
		r.mu.Unlock()
		return
	}
	r.untrack(s.ID)
	r.mu.Unlock()

	r.release(s)
}

// CloseByID closes the tracked session with id, if any.
func (r *Registry) CloseByID(id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	r.Close(s)
	return true
}

func (r *Registry) untrack(id string) {
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) release(s *Session) {
	if err := s.Browser.Close(); err != nil {
		r.logger.Warnf("error closing session %s: %v", s.ID, err)
		return
	}
	r.logger.Infof("closed session %s", s.ID)
}

// CloseAll releases every tracked session concurrently.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.mu.Unlock()

	errs := make([]error, len(sessions))
	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			if err := s.Browser.Close(); err != nil {
				errs[i] = fmt.Errorf("session %s: %w", s.ID, err)
			}
		}(i, s)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors closing sessions: %w", err)
	}
	return nil
}

// CleanupIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed. A zero timeout disables cleanup.
func (r *Registry) CleanupIdle() int {
	if r.opts.IdleTimeout <= 0 {
		return 0
	}

	now := time.Now()
	var idle []*Session

	r.mu.Lock()
	for _, id := range r.order {
		s := r.sessions[id]
		if now.Sub(s.LastUsedAt) > r.opts.IdleTimeout {
			idle = append(idle, s)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.logger.Infof("session %s idle for more than %s, closing", s.ID, r.opts.IdleTimeout)
		r.Close(s)
	}
	return len(idle)
}

// Info contains metadata about a tracked session.
type Info struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// List returns tracked sessions in creation order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		s := r.sessions[id]
		infos = append(infos, Info{ID: s.ID, CreatedAt: s.CreatedAt, LastUsedAt: s.LastUsedAt})
	}
	return infos
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

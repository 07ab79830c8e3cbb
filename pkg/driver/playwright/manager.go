// Package playwright implements driver.Factory on top of playwright-go.
//
// Sessions are either launched as local Chromium instances or, when a CDP
// endpoint template is configured, opened on a remote browser grid. Remote
// sessions can be reattached by id from any process, which is what lets a
// rehydrated execution context reach a browser created elsewhere.
package playwright

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

// DefaultTimeout is the default timeout for page operations in milliseconds.
const DefaultTimeout = 30000

// Options configures a Manager.
type Options struct {
	// CDPEndpoint is a URL template containing "{session_id}". Empty launches
	// local browsers.
	CDPEndpoint string

	// APIKey replaces "{api_key}" in CDPEndpoint.
	APIKey string

	// Timeout is the default page operation timeout in milliseconds.
	Timeout float64

	// SkipInstall skips downloading the driver and browsers on Initialize.
	SkipInstall bool

	Logger *logging.Logger
}

// Manager owns the Playwright runtime and creates browser sessions.
type Manager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	opts        Options
	logger      *logging.Logger
	initialized bool
}

// NewManager creates a Manager. Initialize must be called before sessions
// can be created.
func NewManager(opts Options) *Manager {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Manager{opts: opts, logger: opts.Logger}
}

// Initialize installs and starts the Playwright driver.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// stdout carries MCP frames over stdio, so the driver must stay quiet
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !m.opts.SkipInstall && m.opts.CDPEndpoint == "" {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

func (m *Manager) runtime() (*playwright.Playwright, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, fmt.Errorf("playwright manager not initialized")
	}
	return m.pw, nil
}

// Create starts a new browser session.
func (m *Manager) Create(opts driver.SessionOptions) (driver.Browser, error) {
	pw, err := m.runtime()
	if err != nil {
		return nil, err
	}

	if m.opts.CDPEndpoint != "" {
		return m.connect(pw, opts.ID, opts)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if opts.Proxies {
		m.logger.Debugf("session %s: proxies are only available on a remote grid", opts.ID)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: viewport(opts),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	b := &browserSession{id: opts.ID, browser: browser, context: bctx, timeout: m.opts.Timeout}
	if _, err := b.Page(); err != nil {
		_ = b.Close()
		return nil, err
	}
	m.logger.Infof("launched local browser for session %s", opts.ID)
	return b, nil
}

// Attach reconnects to a session on the remote grid.
func (m *Manager) Attach(sessionID string) (driver.Browser, error) {
	if m.opts.CDPEndpoint == "" {
		return nil, driver.ErrAttachUnsupported
	}
	pw, err := m.runtime()
	if err != nil {
		return nil, err
	}
	return m.connect(pw, sessionID, driver.SessionOptions{ID: sessionID})
}

func (m *Manager) connect(pw *playwright.Playwright, id string, opts driver.SessionOptions) (driver.Browser, error) {
	endpoint := m.Endpoint(id, opts.Proxies)
	browser, err := pw.Chromium.ConnectOverCDP(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session %s: %w", id, err)
	}

	b := &browserSession{id: id, browser: browser, timeout: m.opts.Timeout}
	if contexts := browser.Contexts(); len(contexts) > 0 {
		b.context = contexts[0]
	} else {
		bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{Viewport: viewport(opts)})
		if err != nil {
			_ = browser.Close()
			return nil, fmt.Errorf("failed to create context: %w", err)
		}
		b.context = bctx
	}
	if _, err := b.Page(); err != nil {
		_ = b.Close()
		return nil, err
	}
	m.logger.Debugf("connected to session %s", id)
	return b, nil
}

// Endpoint expands the CDP endpoint template for a session.
func (m *Manager) Endpoint(sessionID string, proxies bool) string {
	return strings.NewReplacer(
		"{session_id}", sessionID,
		"{api_key}", m.opts.APIKey,
		"{proxies}", strconv.FormatBool(proxies),
	).Replace(m.opts.CDPEndpoint)
}

// Shutdown stops the Playwright driver. Sessions are owned by the session
// registry and must be closed before.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.pw == nil {
		return nil
	}
	m.initialized = false
	if err := m.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func viewport(opts driver.SessionOptions) *playwright.Size {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil
	}
	return &playwright.Size{Width: opts.Width, Height: opts.Height}
}

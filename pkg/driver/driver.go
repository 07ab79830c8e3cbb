// Package driver declares the browser automation capabilities the continuity
// layer consumes.
//
// The layer never talks to a browser directly. It resolves a Browser for a
// session id, asks it for the active Page, and works through the Frame and
// Element capabilities below. pkg/driver/playwright provides the production
// implementation; tests use in-memory fakes.
package driver

import "errors"

// ErrElementNotFound is returned when a reference no longer matches an element
// in its frame, typically because the page changed since the snapshot.
var ErrElementNotFound = errors.New("element not found")

// Browser is one live automation session.
type Browser interface {
	// ID returns the session id the browser was created or attached under.
	ID() string

	// Page returns the active page.
	Page() (Page, error)

	// IsConnected reports whether the underlying browser is still reachable.
	IsConnected() bool

	// Close releases the browser. Closing an already closed browser is not an
	// error.
	Close() error
}

// Frame is a document that can be captured and queried by reference: the
// root page or an embedded frame.
type Frame interface {
	// AccessibilitySnapshot returns the accessibility tree of the frame's
	// document with frame-local element references.
	AccessibilitySnapshot() (*AXNode, error)

	// FrameByRef descends into the embedded frame whose element carries ref.
	FrameByRef(ref string) (Frame, error)

	// ElementByRef resolves a frame-local reference to an element.
	ElementByRef(ref string) (Element, error)
}

// Page is the root frame of a browser tab plus page-level operations.
type Page interface {
	Frame

	Goto(url string) error
	GoBack() error
	GoForward() error

	URL() string
	Title() (string, error)
	IsClosed() bool

	// Content returns the page's serialized HTML.
	Content() (string, error)

	Screenshot(opts ScreenshotOptions) ([]byte, error)
	PressKey(key string) error
	SetViewport(width, height int) error
}

// Element is an element resolved from a snapshot reference.
type Element interface {
	Click() error
	Hover() error
	Fill(text string) error
	Press(key string) error
	SelectOptions(values []string) ([]string, error)
}

// ScreenshotOptions configures page screenshots.
type ScreenshotOptions struct {
	FullPage bool
}

// AXNode is one node of an accessibility tree.
type AXNode struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`

	// Ref is the frame-local element reference, empty for nodes that cannot
	// be targeted.
	Ref string `json:"ref,omitempty"`

	// Frame marks an embedded-frame boundary; its content is captured by
	// descending with FrameByRef(Ref).
	Frame bool `json:"frame,omitempty"`

	Level    int   `json:"level,omitempty"`
	Checked  *bool `json:"checked,omitempty"`
	Disabled bool  `json:"disabled,omitempty"`

	Children []*AXNode `json:"children,omitempty"`
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// ID is the session id to create. Factories generate one when empty.
	ID string

	Headless bool
	Width    int
	Height   int
	Proxies  bool
}

// Factory creates and attaches browsers.
type Factory interface {
	// Create starts a new browser session.
	Create(opts SessionOptions) (Browser, error)

	// Attach reconnects to an existing session created by another process.
	// Factories that cannot attach return ErrAttachUnsupported.
	Attach(sessionID string) (Browser, error)
}

// ErrAttachUnsupported is returned by factories that only launch local browsers.
var ErrAttachUnsupported = errors.New("attaching to an existing session is not supported")

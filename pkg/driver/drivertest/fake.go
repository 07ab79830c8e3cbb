// Package drivertest provides in-memory driver implementations for tests.
package drivertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
)

// Frame is an in-memory driver.Frame.
type Frame struct {
	mu sync.Mutex

	Tree        *driver.AXNode
	SnapshotErr error

	// Frames maps the ref of an iframe element to its content.
	Frames map[string]*Frame
	// FrameErrs makes FrameByRef fail for a ref.
	FrameErrs map[string]error
	// Elements maps frame-local refs to elements.
	Elements map[string]*Element
}

// NewFrame returns a frame whose accessibility tree is tree. Every ref found
// in tree gets an Element.
func NewFrame(tree *driver.AXNode) *Frame {
	f := &Frame{
		Tree:      tree,
		Frames:    make(map[string]*Frame),
		FrameErrs: make(map[string]error),
		Elements:  make(map[string]*Element),
	}
	f.indexElements(tree)
	return f
}

func (f *Frame) indexElements(n *driver.AXNode) {
	if n == nil {
		return
	}
	if n.Ref != "" {
		f.Elements[n.Ref] = &Element{Ref: n.Ref}
	}
	for _, c := range n.Children {
		f.indexElements(c)
	}
}

// AttachFrame registers child as the content of the iframe element ref.
func (f *Frame) AttachFrame(ref string, child *Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames[ref] = child
}

func (f *Frame) AccessibilitySnapshot() (*driver.AXNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}
	return f.Tree, nil
}

func (f *Frame) FrameByRef(ref string) (driver.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FrameErrs[ref]; err != nil {
		return nil, err
	}
	child, ok := f.Frames[ref]
	if !ok {
		return nil, fmt.Errorf("no frame for ref %s", ref)
	}
	return child, nil
}

func (f *Frame) ElementByRef(ref string) (driver.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.Elements[ref]
	if !ok {
		return nil, fmt.Errorf("ref %s: %w", ref, driver.ErrElementNotFound)
	}
	return el, nil
}

// Element is an in-memory driver.Element that records interactions.
type Element struct {
	mu sync.Mutex

	Ref string
	Err error

	Clicks   int
	Hovers   int
	Filled   []string
	Pressed  []string
	Selected []string
}

func (e *Element) record(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	fn()
	return nil
}

func (e *Element) Click() error { return e.record(func() { e.Clicks++ }) }
func (e *Element) Hover() error { return e.record(func() { e.Hovers++ }) }

func (e *Element) Fill(text string) error {
	return e.record(func() { e.Filled = append(e.Filled, text) })
}

func (e *Element) Press(key string) error {
	return e.record(func() { e.Pressed = append(e.Pressed, key) })
}

func (e *Element) SelectOptions(values []string) ([]string, error) {
	err := e.record(func() { e.Selected = append(e.Selected, values...) })
	if err != nil {
		return nil, err
	}
	return values, nil
}

// ClickCount returns how many times the element was clicked.
func (e *Element) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Clicks
}

// Page is an in-memory driver.Page.
type Page struct {
	*Frame

	mu sync.Mutex

	CurrentURL string
	PageTitle  string
	TitleErr   error
	Closed     bool
	HTML       string
	PNG        []byte

	// Titles maps URLs to the title the page reports after Goto.
	Titles  map[string]string
	GotoErr error

	Keys   []string
	Width  int
	Height int

	history []string
	pos     int
}

// NewPage returns a page at url whose root frame has the given tree.
func NewPage(url, title string, tree *driver.AXNode) *Page {
	return &Page{
		Frame:      NewFrame(tree),
		CurrentURL: url,
		PageTitle:  title,
		Titles:     make(map[string]string),
		PNG:        []byte{0x89, 'P', 'N', 'G'},
		history:    []string{url},
	}
}

func (p *Page) Goto(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.history = append(p.history[:p.pos+1], url)
	p.pos = len(p.history) - 1
	p.setURL(url)
	return nil
}

func (p *Page) setURL(url string) {
	p.CurrentURL = url
	if title, ok := p.Titles[url]; ok {
		p.PageTitle = title
	}
}

func (p *Page) GoBack() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == 0 {
		return errors.New("no previous page")
	}
	p.pos--
	p.setURL(p.history[p.pos])
	return nil
}

func (p *Page) GoForward() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.history)-1 {
		return errors.New("no next page")
	}
	p.pos++
	p.setURL(p.history[p.pos])
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TitleErr != nil {
		return "", p.TitleErr
	}
	return p.PageTitle, nil
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTML, nil
}

func (p *Page) Screenshot(driver.ScreenshotOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PNG, nil
}

func (p *Page) PressKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return nil
}

func (p *Page) SetViewport(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Width, p.Height = width, height
	return nil
}

// Browser is an in-memory driver.Browser.
type Browser struct {
	mu sync.Mutex

	SessionID string
	P         *Page
	PageErr   error
	Connected bool
	Closes    int
}

// NewBrowser returns a connected browser serving page.
func NewBrowser(id string, page *Page) *Browser {
	return &Browser{SessionID: id, P: page, Connected: true}
}

func (b *Browser) ID() string { return b.SessionID }

func (b *Browser) Page() (driver.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PageErr != nil {
		return nil, b.PageErr
	}
	return b.P, nil
}

func (b *Browser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Connected
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closes++
	b.Connected = false
	return nil
}

// CloseCount returns how many times Close was called.
func (b *Browser) CloseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Closes
}

// Factory is an in-memory driver.Factory.
type Factory struct {
	mu sync.Mutex

	// NewPage builds the page for each created browser. Defaults to a blank page.
	NewPage   func() *Page
	CreateErr error

	// Attachable holds browsers that Attach can return, by session id.
	Attachable map[string]*Browser

	Created []*Browser
	Options []driver.SessionOptions
	seq     int
}

// NewFactory returns a factory creating blank pages.
func NewFactory() *Factory {
	return &Factory{Attachable: make(map[string]*Browser)}
}

func (f *Factory) Create(opts driver.SessionOptions) (driver.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.seq++
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("session-%d", f.seq)
	}
	page := NewPage("about:blank", "", &driver.AXNode{Role: "document"})
	if f.NewPage != nil {
		page = f.NewPage()
	}
	b := NewBrowser(opts.ID, page)
	f.Created = append(f.Created, b)
	f.Options = append(f.Options, opts)
	return b, nil
}

func (f *Factory) Attach(sessionID string) (driver.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Attachable[sessionID]
	if !ok {
		return nil, driver.ErrAttachUnsupported
	}
	return b, nil
}

// CreatedCount returns how many browsers were created.
func (f *Factory) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

package playwright

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
)

// browserSession is one browser with the context its pages live in.
type browserSession struct {
	id      string
	browser playwright.Browser
	context playwright.BrowserContext
	timeout float64

	mu     sync.Mutex
	page   playwright.Page
	closed bool
}

func (b *browserSession) ID() string {
	return b.id
}

// Page returns the active page: the last page opened in the context that is
// still open. A context without pages gets a new one.
func (b *browserSession) Page() (driver.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("session %s is closed", b.id)
	}

	if b.page == nil || b.page.IsClosed() {
		b.page = nil
		pages := b.context.Pages()
		for i := len(pages) - 1; i >= 0; i-- {
			if !pages[i].IsClosed() {
				b.page = pages[i]
				break
			}
		}
	}
	if b.page == nil {
		page, err := b.context.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		page.SetDefaultTimeout(b.timeout)
		b.page = page
	}
	return newPage(b.page), nil
}

func (b *browserSession) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.browser.IsConnected()
}

// Close releases the context and the browser connection. For remote sessions
// this disconnects; the grid decides when the session itself ends.
func (b *browserSession) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// page adapts playwright.Page. Its frame capabilities are those of the main
// frame.
type page struct {
	*frame
	p playwright.Page
}

func newPage(p playwright.Page) *page {
	return &page{frame: &frame{f: p.MainFrame()}, p: p}
}

func (p *page) Goto(url string) error {
	if _, err := p.p.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *page) GoBack() error {
	if _, err := p.p.GoBack(); err != nil {
		return fmt.Errorf("navigation back failed: %w", err)
	}
	return nil
}

func (p *page) GoForward() error {
	if _, err := p.p.GoForward(); err != nil {
		return fmt.Errorf("navigation forward failed: %w", err)
	}
	return nil
}

func (p *page) URL() string {
	return p.p.URL()
}

func (p *page) Title() (string, error) {
	return p.p.Title()
}

func (p *page) IsClosed() bool {
	return p.p.IsClosed()
}

func (p *page) Content() (string, error) {
	return p.p.Content()
}

func (p *page) Screenshot(opts driver.ScreenshotOptions) ([]byte, error) {
	data, err := p.p.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (p *page) PressKey(key string) error {
	return p.p.Keyboard().Press(key)
}

func (p *page) SetViewport(width, height int) error {
	return p.p.SetViewportSize(width, height)
}

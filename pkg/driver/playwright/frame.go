package playwright

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
)

// refAttribute tags elements with their frame-local reference. References
// survive repeated snapshots of the same document.
const refAttribute = "data-bb-ref"

type frame struct {
	f playwright.Frame
}

func refSelector(ref string) string {
	return "[" + refAttribute + "=" + strconv.Quote(ref) + "]"
}

// AccessibilitySnapshot walks the frame's DOM, tags targetable elements and
// returns the resulting tree.
func (fr *frame) AccessibilitySnapshot() (*driver.AXNode, error) {
	raw, err := fr.f.Evaluate(axTreeScript)
	if err != nil {
		return nil, fmt.Errorf("accessibility snapshot failed: %w", err)
	}
	return parseTree(raw)
}

// parseTree decodes the JSON document produced by axTreeScript.
func parseTree(raw any) (*driver.AXNode, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("accessibility snapshot returned %T, want string", raw)
	}
	var root driver.AXNode
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("failed to decode accessibility tree: %w", err)
	}
	return &root, nil
}

func (fr *frame) FrameByRef(ref string) (driver.Frame, error) {
	loc := fr.f.Locator(refSelector(ref))
	n, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", driver.ErrElementNotFound, ref)
	}
	handle, err := loc.First().ElementHandle()
	if err != nil {
		return nil, err
	}
	content, err := handle.ContentFrame()
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("element %s is not a frame", ref)
	}
	return &frame{f: content}, nil
}

func (fr *frame) ElementByRef(ref string) (driver.Element, error) {
	loc := fr.f.Locator(refSelector(ref))
	n, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", driver.ErrElementNotFound, ref)
	}
	return &element{loc: loc.First()}, nil
}

type element struct {
	loc playwright.Locator
}

func (e *element) Click() error {
	return e.loc.Click()
}

func (e *element) Hover() error {
	return e.loc.Hover()
}

func (e *element) Fill(text string) error {
	return e.loc.Fill(text)
}

func (e *element) Press(key string) error {
	return e.loc.Press(key)
}

func (e *element) SelectOptions(values []string) ([]string, error) {
	return e.loc.SelectOption(playwright.SelectOptionValues{Values: &values})
}

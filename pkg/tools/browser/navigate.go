package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/security/urlguard"
)

// NavigateTool navigates the current page to a URL.
type NavigateTool struct {
	guard *urlguard.Guard
}

// NewNavigateTool creates a new navigate tool.
func NewNavigateTool(guard *urlguard.Guard) *NavigateTool {
	return &NavigateTool{guard: guard}
}

// Name returns the tool name.
func (t *NavigateTool) Name() string {
	return "browserbase_navigate"
}

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate the current browser page to a URL and return the resulting page snapshot."
}

// Kind marks the tool as replacing the page.
func (t *NavigateTool) Kind() execution.Kind {
	return execution.KindNavigate
}

// Schema returns the tool's JSON schema.
func (t *NavigateTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"url": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The URL to navigate to (must include http:// or https://)",
			},
		},
		[]string{"url"},
	)
}

type navigateInput struct {
	URL string `json:"url"`
}

// Handle checks the target against the navigation policy.
func (t *NavigateTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input navigateInput
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if err := t.guard.Check(input.URL); err != nil {
		return nil, err
	}
	page, err := c.Page()
	if err != nil {
		return nil, err
	}

	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			if err := page.Goto(input.URL); err != nil {
				return nil, err
			}
			return []execution.Content{execution.TextContentf("Navigated to %s", page.URL())}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

// historyTool moves through the page's history.
type historyTool struct {
	name        string
	description string
	verb        string
	move        func(driver.Page) error
}

// NewNavigateBackTool creates a tool going back in history.
func NewNavigateBackTool() execution.Tool {
	return &historyTool{
		name:        "browserbase_navigate_back",
		description: "Go back to the previous page in the current session's history.",
		verb:        "back",
		move:        driver.Page.GoBack,
	}
}

// NewNavigateForwardTool creates a tool going forward in history.
func NewNavigateForwardTool() execution.Tool {
	return &historyTool{
		name:        "browserbase_navigate_forward",
		description: "Go forward to the next page in the current session's history.",
		verb:        "forward",
		move:        driver.Page.GoForward,
	}
}

func (t *historyTool) Name() string           { return t.name }
func (t *historyTool) Description() string    { return t.description }
func (t *historyTool) Kind() execution.Kind   { return execution.KindNavigate }
func (t *historyTool) Schema() map[string]any { return execution.ObjectSchema(nil, nil) }

func (t *historyTool) Handle(_ context.Context, c *execution.Context, _ json.RawMessage) (*execution.Invocation, error) {
	page, err := c.Page()
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			if err := t.move(page); err != nil {
				return nil, fmt.Errorf("navigating %s: %w", t.verb, err)
			}
			return []execution.Content{execution.TextContentf("Navigated %s to %s", t.verb, page.URL())}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

// SnapshotTool captures a fresh snapshot of the current page.
type SnapshotTool struct{}

// NewSnapshotTool creates a new snapshot tool.
func NewSnapshotTool() *SnapshotTool {
	return &SnapshotTool{}
}

// Name returns the tool name.
func (t *SnapshotTool) Name() string {
	return "browserbase_snapshot"
}

// Description returns the tool description.
func (t *SnapshotTool) Description() string {
	return "Capture an accessibility snapshot of the current page. Element references in the snapshot are used by click, type, hover and select_option."
}

// Kind marks the tool as capturing its own snapshot.
func (t *SnapshotTool) Kind() execution.Kind {
	return execution.KindSnapshot
}

// Schema returns the tool's JSON schema.
func (t *SnapshotTool) Schema() map[string]any {
	return execution.ObjectSchema(nil, nil)
}

// Handle requests a snapshot; the action itself does nothing.
func (t *SnapshotTool) Handle(context.Context, *execution.Context, json.RawMessage) (*execution.Invocation, error) {
	return &execution.Invocation{CaptureSnapshot: true}, nil
}

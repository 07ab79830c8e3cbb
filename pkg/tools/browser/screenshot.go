package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// ScreenshotTool captures the page as PNG and keeps it as a resource.
type ScreenshotTool struct {
	now func() time.Time
}

// NewScreenshotTool creates a new screenshot tool.
func NewScreenshotTool() *ScreenshotTool {
	return &ScreenshotTool{now: time.Now}
}

// Name returns the tool name.
func (t *ScreenshotTool) Name() string {
	return "browserbase_take_screenshot"
}

// Description returns the tool description.
func (t *ScreenshotTool) Description() string {
	return "Take a PNG screenshot of the current page. The image is returned inline and stored as a browserbase://screenshot/<name> resource."
}

// Schema returns the tool's JSON schema.
func (t *ScreenshotTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"name": map[string]any{
				"type":        "string",
				"pattern":     `^[A-Za-z0-9._-]+$`,
				"description": "Resource name for the screenshot. Defaults to a timestamped name",
			},
			"fullPage": map[string]any{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of the viewport. Default: false",
			},
		},
		nil,
	)
}

type screenshotInput struct {
	Name     string `json:"name"`
	FullPage bool   `json:"fullPage"`
}

// Handle resolves the page.
func (t *ScreenshotTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input screenshotInput
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if input.Name == "" {
		input.Name = fmt.Sprintf("screenshot-%d", t.now().UnixMilli())
	}
	page, err := c.Page()
	if err != nil {
		return nil, err
	}

	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			data, err := page.Screenshot(driver.ScreenshotOptions{FullPage: input.FullPage})
			if err != nil {
				return nil, err
			}
			r := c.AddResource(execution.ResourceScreenshot, input.Name, "image/png", data)
			return []execution.Content{
				execution.TextContentf("Took screenshot %s (%s)", r.Name, r.URI),
				execution.ImageContent(data, "image/png"),
			}, nil
		},
	}, nil
}

// pageInfoTool reports one property of the current page.
type pageInfoTool struct {
	name        string
	description string
	read        func(driver.Page) (string, error)
}

// NewGetURLTool creates a tool reporting the page URL.
func NewGetURLTool() execution.Tool {
	return &pageInfoTool{
		name:        "browserbase_get_url",
		description: "Return the URL of the current page.",
		read: func(p driver.Page) (string, error) {
			return p.URL(), nil
		},
	}
}

// NewGetTitleTool creates a tool reporting the page title.
func NewGetTitleTool() execution.Tool {
	return &pageInfoTool{
		name:        "browserbase_get_title",
		description: "Return the title of the current page.",
		read:        driver.Page.Title,
	}
}

func (t *pageInfoTool) Name() string           { return t.name }
func (t *pageInfoTool) Description() string    { return t.description }
func (t *pageInfoTool) Schema() map[string]any { return execution.ObjectSchema(nil, nil) }

func (t *pageInfoTool) Handle(_ context.Context, c *execution.Context, _ json.RawMessage) (*execution.Invocation, error) {
	page, err := c.Page()
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			value, err := t.read(page)
			if err != nil {
				return nil, err
			}
			return []execution.Content{execution.TextContent(value)}, nil
		},
	}, nil
}

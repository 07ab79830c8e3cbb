package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// WaitTool pauses before the next snapshot, letting slow pages settle.
type WaitTool struct {
	max time.Duration
}

// NewWaitTool creates a new wait tool. Waits are capped at max.
func NewWaitTool(max time.Duration) *WaitTool {
	return &WaitTool{max: max}
}

// Name returns the tool name.
func (t *WaitTool) Name() string {
	return "browserbase_wait"
}

// Description returns the tool description.
func (t *WaitTool) Description() string {
	return fmt.Sprintf("Wait for a number of seconds (at most %s) and return a fresh snapshot.", t.max)
}

// Schema returns the tool's JSON schema.
func (t *WaitTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"time": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Seconds to wait",
			},
		},
		[]string{"time"},
	)
}

// Handle computes the capped duration.
func (t *WaitTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input struct {
		Time float64 `json:"time"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	// Compare in seconds; converting a huge float to a Duration overflows.
	d := t.max
	if input.Time < t.max.Seconds() {
		d = time.Duration(input.Time * float64(time.Second))
	} else {
		c.Logger().Debugf("wait of %gs capped at %s", input.Time, t.max)
	}

	return &execution.Invocation{
		Action: func(ctx context.Context) ([]execution.Content, error) {
			if d > 0 {
				if err := sleepWithContext(ctx, d); err != nil {
					return nil, err
				}
			}
			return []execution.Content{execution.TextContentf("Waited %s", d)}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

// ResizeTool changes the viewport of the current page.
type ResizeTool struct{}

// NewResizeTool creates a new resize tool.
func NewResizeTool() *ResizeTool {
	return &ResizeTool{}
}

// Name returns the tool name.
func (t *ResizeTool) Name() string {
	return "browserbase_resize"
}

// Description returns the tool description.
func (t *ResizeTool) Description() string {
	return "Resize the browser viewport of the current page."
}

// Schema returns the tool's JSON schema.
func (t *ResizeTool) Schema() map[string]any {
	dimension := func(what string) map[string]any {
		return map[string]any{
			"type":        "integer",
			"minimum":     100,
			"maximum":     5000,
			"description": "Viewport " + what + " in pixels",
		}
	}
	return execution.ObjectSchema(
		map[string]any{
			"width":  dimension("width"),
			"height": dimension("height"),
		},
		[]string{"width", "height"},
	)
}

// Handle resolves the page.
func (t *ResizeTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	page, err := c.Page()
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			if err := page.SetViewport(input.Width, input.Height); err != nil {
				return nil, err
			}
			return []execution.Content{execution.TextContentf("Resized viewport to %dx%d", input.Width, input.Height)}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

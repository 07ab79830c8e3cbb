package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// TypeTool fills text into an editable element.
type TypeTool struct{}

// NewTypeTool creates a new type tool.
func NewTypeTool() *TypeTool {
	return &TypeTool{}
}

// Name returns the tool name.
func (t *TypeTool) Name() string {
	return "browserbase_type"
}

// Description returns the tool description.
func (t *TypeTool) Description() string {
	return "Type text into an editable element, replacing its current value. Set submit to press Enter afterwards."
}

// Schema returns the tool's JSON schema.
func (t *TypeTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"ref":     refProperty(),
			"element": elementProperty(),
			"text": map[string]any{
				"type":        "string",
				"description": "Text to type into the element",
			},
			"submit": map[string]any{
				"type":        "boolean",
				"description": "Press Enter after typing. Default: false",
			},
		},
		[]string{"ref", "text"},
	)
}

type typeInput struct {
	refInput
	Text   string `json:"text"`
	Submit bool   `json:"submit"`
}

// Handle resolves the target element.
func (t *TypeTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input typeInput
	el, err := resolve(c, args, &input, &input.Ref)
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			if err := el.Fill(input.Text); err != nil {
				return nil, fmt.Errorf("fill failed: %w", err)
			}
			if input.Submit {
				if err := el.Press("Enter"); err != nil {
					return nil, fmt.Errorf("submit failed: %w", err)
				}
				return []execution.Content{execution.TextContentf("Typed %q into %s and submitted", input.Text, input.label())}, nil
			}
			return []execution.Content{execution.TextContentf("Typed %q into %s", input.Text, input.label())}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

// SelectOptionTool selects options of a select element.
type SelectOptionTool struct{}

// NewSelectOptionTool creates a new select option tool.
func NewSelectOptionTool() *SelectOptionTool {
	return &SelectOptionTool{}
}

// Name returns the tool name.
func (t *SelectOptionTool) Name() string {
	return "browserbase_select_option"
}

// Description returns the tool description.
func (t *SelectOptionTool) Description() string {
	return "Select one or more options of a dropdown, matching option values or labels."
}

// Schema returns the tool's JSON schema.
func (t *SelectOptionTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"ref":     refProperty(),
			"element": elementProperty(),
			"values": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": "Values to select",
			},
		},
		[]string{"ref", "values"},
	)
}

type selectInput struct {
	refInput
	Values []string `json:"values"`
}

// Handle resolves the target element.
func (t *SelectOptionTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input selectInput
	el, err := resolve(c, args, &input, &input.Ref)
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			selected, err := el.SelectOptions(input.Values)
			if err != nil {
				return nil, fmt.Errorf("select failed: %w", err)
			}
			return []execution.Content{execution.TextContentf("Selected %s in %s", strings.Join(selected, ", "), input.label())}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

// PressKeyTool presses a key on the page.
type PressKeyTool struct{}

// NewPressKeyTool creates a new press key tool.
func NewPressKeyTool() *PressKeyTool {
	return &PressKeyTool{}
}

// Name returns the tool name.
func (t *PressKeyTool) Name() string {
	return "browserbase_press_key"
}

// Description returns the tool description.
func (t *PressKeyTool) Description() string {
	return "Press a key on the keyboard, such as 'Enter', 'ArrowLeft' or 'a'. Combinations like 'Control+A' are supported."
}

// Schema returns the tool's JSON schema.
func (t *PressKeyTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"key": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of the key to press",
			},
		},
		[]string{"key"},
	)
}

// Handle resolves the page.
func (t *PressKeyTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input struct {
		Key string `json:"key"`
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
			if err := page.PressKey(input.Key); err != nil {
				return nil, err
			}
			return []execution.Content{execution.TextContentf("Pressed %s", input.Key)}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

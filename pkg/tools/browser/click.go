package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

type refInput struct {
	Ref     string `json:"ref"`
	Element string `json:"element"`
}

// label names the target in result messages.
func (in refInput) label() string {
	if in.Element != "" {
		return fmt.Sprintf("%s (%s)", in.Element, in.Ref)
	}
	return in.Ref
}

// resolve decodes the reference arguments and resolves the element in the
// current session's snapshot.
func resolve(c *execution.Context, args json.RawMessage, input any, ref *string) (driver.Element, error) {
	if err := decodeArgs(args, input); err != nil {
		return nil, err
	}
	return c.ResolveElement(*ref)
}

// pointerTool performs a single pointer action on a referenced element.
type pointerTool struct {
	name        string
	description string
	past        string
	act         func(driver.Element) error
}

// NewClickTool creates a tool clicking an element.
func NewClickTool() execution.Tool {
	return &pointerTool{
		name:        "browserbase_click",
		description: "Click an element on the page, identified by its reference in the latest snapshot.",
		past:        "Clicked",
		act:         driver.Element.Click,
	}
}

// NewHoverTool creates a tool hovering over an element.
func NewHoverTool() execution.Tool {
	return &pointerTool{
		name:        "browserbase_hover",
		description: "Hover over an element on the page, identified by its reference in the latest snapshot.",
		past:        "Hovered over",
		act:         driver.Element.Hover,
	}
}

func (t *pointerTool) Name() string        { return t.name }
func (t *pointerTool) Description() string { return t.description }

func (t *pointerTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"ref":     refProperty(),
			"element": elementProperty(),
		},
		[]string{"ref"},
	)
}

func (t *pointerTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input refInput
	el, err := resolve(c, args, &input, &input.Ref)
	if err != nil {
		return nil, err
	}
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			if err := t.act(el); err != nil {
				return nil, err
			}
			return []execution.Content{execution.TextContentf("%s %s", t.past, input.label())}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// SessionCreateTool creates a browser session, or reuses a live one with
// the same id, and makes it the current session.
type SessionCreateTool struct {
	defaults driver.SessionOptions
}

// NewSessionCreateTool creates a new session create tool.
func NewSessionCreateTool(defaults driver.SessionOptions) *SessionCreateTool {
	return &SessionCreateTool{defaults: defaults}
}

// Name returns the tool name.
func (t *SessionCreateTool) Name() string {
	return "browserbase_session_create"
}

// Description returns the tool description.
func (t *SessionCreateTool) Description() string {
	return "Create a cloud browser session, or reuse the live session with the given id, and make it the current session. Without a sessionId the default session is used."
}

// Kind marks the tool as creating the session it targets.
func (t *SessionCreateTool) Kind() execution.Kind {
	return execution.KindSessionCreate
}

// Schema returns the tool's JSON schema.
func (t *SessionCreateTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"viewport": map[string]any{
				"type":        "object",
				"description": "Initial viewport size in pixels",
				"properties": map[string]any{
					"width":  map[string]any{"type": "integer", "minimum": 100, "maximum": 5000},
					"height": map[string]any{"type": "integer", "minimum": 100, "maximum": 5000},
				},
				"required":             []string{"width", "height"},
				"additionalProperties": false,
			},
		},
		nil,
	)
}

type sessionCreateInput struct {
	SessionID string `json:"sessionId"`
	Viewport  *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"viewport"`
}

// Handle selects the session and defers its creation to the action.
func (t *SessionCreateTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input sessionCreateInput
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	id := input.SessionID
	if id == "" {
		id = c.Options().DefaultSessionID
	}
	opts := t.defaults
	opts.ID = id
	if input.Viewport != nil {
		opts.Width = input.Viewport.Width
		opts.Height = input.Viewport.Height
	}

	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			registry := c.Registry()
			c.SetCurrentSessionID(id)

			if s, ok := registry.Get(id); ok && s.Browser.IsConnected() {
				c.Logger().Debugf("reusing live session %s", id)
				return []execution.Content{execution.TextContentf("Reusing existing session %s", id)}, nil
			}

			c.ClearSnapshot(id)
			s, err := registry.Create(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to create session: %w", err)
			}
			return []execution.Content{execution.TextContentf("Created session %s", s.ID)}, nil
		},
		CaptureSnapshot: true,
	}, nil
}

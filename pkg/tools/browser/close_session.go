package browser

import (
	"context"
	"encoding/json"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// SessionCloseTool closes the current session and falls back to the
// default session.
type SessionCloseTool struct{}

// NewSessionCloseTool creates a new session close tool.
func NewSessionCloseTool() *SessionCloseTool {
	return &SessionCloseTool{}
}

// Name returns the tool name.
func (t *SessionCloseTool) Name() string {
	return "browserbase_session_close"
}

// Description returns the tool description.
func (t *SessionCloseTool) Description() string {
	return "Close the current browser session (or the one named by sessionId) and release its resources."
}

// Kind marks the tool as ending the session it targets.
func (t *SessionCloseTool) Kind() execution.Kind {
	return execution.KindSessionClose
}

// Schema returns the tool's JSON schema.
func (t *SessionCloseTool) Schema() map[string]any {
	return execution.ObjectSchema(nil, nil)
}

// Handle defers closing to the action.
func (t *SessionCloseTool) Handle(_ context.Context, c *execution.Context, _ json.RawMessage) (*execution.Invocation, error) {
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			id := c.CurrentSessionID()
			closed := c.Registry().CloseByID(id)
			c.ClearSnapshot(id)
			c.SetCurrentSessionID(c.Options().DefaultSessionID)

			if !closed {
				return []execution.Content{execution.TextContentf("Session %s was not open", id)}, nil
			}
			return []execution.Content{execution.TextContentf("Closed session %s", id)}, nil
		},
	}, nil
}

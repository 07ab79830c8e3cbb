package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// SessionListTool lists the sessions this process tracks.
type SessionListTool struct{}

// NewSessionListTool creates a new session list tool.
func NewSessionListTool() *SessionListTool {
	return &SessionListTool{}
}

// Name returns the tool name.
func (t *SessionListTool) Name() string {
	return "browserbase_session_list"
}

// Description returns the tool description.
func (t *SessionListTool) Description() string {
	return "List the browser sessions open in this server process, with their age and idle time."
}

// Schema returns the tool's JSON schema.
func (t *SessionListTool) Schema() map[string]any {
	return execution.ObjectSchema(nil, nil)
}

// Handle lists sessions.
func (t *SessionListTool) Handle(_ context.Context, c *execution.Context, _ json.RawMessage) (*execution.Invocation, error) {
	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			infos := c.Registry().List()
			current := c.CurrentSessionID()

			var result strings.Builder
			fmt.Fprintf(&result, "Open sessions: %d\n", len(infos))
			for i, info := range infos {
				marker := ""
				if info.ID == current {
					marker = " (current)"
				}
				fmt.Fprintf(&result, "\n%d. %s%s\n   Age: %s\n   Last Used: %s ago\n",
					i+1,
					info.ID,
					marker,
					formatDuration(time.Since(info.CreatedAt)),
					formatDuration(time.Since(info.LastUsedAt)),
				)
			}
			return []execution.Content{execution.TextContent(result.String())}, nil
		},
	}, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

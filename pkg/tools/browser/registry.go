package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/llm"
	"github.com/entrhq/browserbase-mcp/pkg/security/urlguard"
)

// Default limits.
const (
	DefaultMaxWait          = 30 * time.Second
	DefaultMaxExtractLength = 20000
	DefaultMaxSearchResults = 10
)

// Options configures the browser tools.
type Options struct {
	// Guard gates navigation targets. A nil Guard allows every http(s) URL.
	Guard *urlguard.Guard

	// LLM answers extract and observe instructions. Nil disables
	// model-backed answers; the tools then return the raw material.
	LLM llm.Provider

	// Defaults are applied to sessions created by browserbase_session_create.
	Defaults driver.SessionOptions

	MaxWait          time.Duration
	MaxExtractLength int
}

// Tools returns every browser tool.
func Tools(opts Options) []execution.Tool {
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.MaxExtractLength <= 0 {
		opts.MaxExtractLength = DefaultMaxExtractLength
	}

	return []execution.Tool{
		// Session management
		NewSessionCreateTool(opts.Defaults),
		NewSessionCloseTool(),
		NewSessionListTool(),

		// Navigation
		NewNavigateTool(opts.Guard),
		NewNavigateBackTool(),
		NewNavigateForwardTool(),
		NewSnapshotTool(),

		// Interaction by reference
		NewClickTool(),
		NewHoverTool(),
		NewTypeTool(),
		NewSelectOptionTool(),
		NewPressKeyTool(),

		// Page information
		NewScreenshotTool(),
		NewGetURLTool(),
		NewGetTitleTool(),
		NewExtractTool(opts.LLM, opts.MaxExtractLength),
		NewObserveTool(opts.LLM),
		NewSearchTool(),

		// Timing and layout
		NewWaitTool(opts.MaxWait),
		NewResizeTool(),
	}
}

// NewToolset compiles every browser tool into a toolset.
func NewToolset(opts Options) (*execution.Toolset, error) {
	return execution.NewToolset(Tools(opts)...)
}

// decodeArgs unmarshals validated arguments into v.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// refProperty is the schema of an element reference argument.
func refProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Element reference from the page snapshot (e.g. 'e12', or 'f1e3' inside a frame)",
	}
}

// elementProperty is the human-readable description of the target element.
func elementProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Human-readable description of the element, used for logging",
	}
}

// sleepWithContext waits for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

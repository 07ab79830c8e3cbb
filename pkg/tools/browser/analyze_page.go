package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/llm"
)

const observeSystemPrompt = "You help a browser automation agent find elements. You are given interactive elements of a page, one per line, each with a [ref=...] marker. Reply with only the lines relevant to the instruction, unchanged, one per line. Reply with NONE if no line is relevant."

// ObserveTool lists the interactive elements of the current page, optionally
// narrowed by a model to those relevant to an instruction.
type ObserveTool struct {
	provider llm.Provider
}

// NewObserveTool creates a new observe tool.
func NewObserveTool(provider llm.Provider) *ObserveTool {
	return &ObserveTool{provider: provider}
}

// Name returns the tool name.
func (t *ObserveTool) Name() string {
	return "browserbase_observe"
}

// Description returns the tool description.
func (t *ObserveTool) Description() string {
	return "List the interactive elements of the current page with their references. With an instruction, return only the elements relevant to it."
}

// Schema returns the tool's JSON schema.
func (t *ObserveTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"instruction": map[string]any{
				"type":        "string",
				"description": "What to look for, e.g. 'the login button'",
			},
		},
		nil,
	)
}

// Handle defers observation to the action.
func (t *ObserveTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input struct {
		Instruction string `json:"instruction"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	return &execution.Invocation{
		Action: func(ctx context.Context) ([]execution.Content, error) {
			snap := c.Snapshot()
			if snap == nil || snap.Disconnected() {
				snap = c.CaptureSnapshot()
			}
			if snap == nil {
				return nil, execution.ErrNoSnapshot
			}

			candidates := interactiveLines(snap.Text())
			if len(candidates) == 0 {
				return []execution.Content{execution.TextContent("No interactive elements found")}, nil
			}

			if input.Instruction == "" || t.provider == nil {
				return []execution.Content{execution.TextContent(formatElements(candidates))}, nil
			}

			reply, err := t.provider.Complete(ctx, []llm.Message{
				llm.SystemMessage(observeSystemPrompt),
				llm.UserMessage(fmt.Sprintf("Instruction: %s\n\nElements:\n%s", input.Instruction, strings.Join(candidates, "\n"))),
			})
			if err != nil {
				return nil, fmt.Errorf("model call failed: %w", err)
			}
			chosen := selectCandidates(candidates, reply)
			if len(chosen) == 0 {
				return []execution.Content{execution.TextContentf("No elements match %q", input.Instruction)}, nil
			}
			return []execution.Content{execution.TextContent(formatElements(chosen))}, nil
		},
	}, nil
}

// interactiveLines returns the snapshot lines that carry a reference.
func interactiveLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "[ref=") {
			out = append(out, strings.TrimPrefix(line, "- "))
		}
	}
	return out
}

// selectCandidates keeps the candidates whose reference appears in the
// model's reply, so a reply can never introduce elements that do not exist.
func selectCandidates(candidates []string, reply string) []string {
	var out []string
	for _, c := range candidates {
		i := strings.Index(c, "[ref=")
		end := strings.IndexByte(c[i:], ']')
		if end < 0 {
			continue
		}
		if strings.Contains(reply, c[i:i+end+1]) {
			out = append(out, c)
		}
	}
	return out
}

func formatElements(lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interactive elements: %d\n", len(lines))
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/llm"
)

const extractSystemPrompt = "You extract information from web pages. Answer the user's instruction using only the page content provided. If the content does not contain the answer, say so."

// ExtractTool returns page content as Markdown, or a model's answer to an
// instruction over it.
type ExtractTool struct {
	provider  llm.Provider
	maxLength int
}

// NewExtractTool creates a new extract tool. A nil provider disables
// instruction answering.
func NewExtractTool(provider llm.Provider, maxLength int) *ExtractTool {
	return &ExtractTool{provider: provider, maxLength: maxLength}
}

// Name returns the tool name.
func (t *ExtractTool) Name() string {
	return "browserbase_extract"
}

// Description returns the tool description.
func (t *ExtractTool) Description() string {
	return "Extract the readable content of the current page as Markdown. With an instruction, answer it over the page content instead."
}

// Schema returns the tool's JSON schema.
func (t *ExtractTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"instruction": map[string]any{
				"type":        "string",
				"description": "What to extract, e.g. 'the product prices'",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "Restrict extraction to elements matching a tag, #id or .class selector",
			},
			"maxLength": map[string]any{
				"type":        "integer",
				"minimum":     100,
				"maximum":     100000,
				"description": fmt.Sprintf("Maximum characters of content. Default: %d", t.maxLength),
			},
		},
		nil,
	)
}

type extractInput struct {
	Instruction string `json:"instruction"`
	Selector    string `json:"selector"`
	MaxLength   int    `json:"maxLength"`
}

// Handle resolves the page.
func (t *ExtractTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input extractInput
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if input.MaxLength == 0 {
		input.MaxLength = t.maxLength
	}
	if input.Selector != "" {
		if _, err := parseSelector(input.Selector); err != nil {
			return nil, err
		}
	}
	page, err := c.Page()
	if err != nil {
		return nil, err
	}

	return &execution.Invocation{
		Action: func(ctx context.Context) ([]execution.Content, error) {
			raw, err := page.Content()
			if err != nil {
				return nil, fmt.Errorf("failed to read page content: %w", err)
			}
			content, err := cleanHTML(raw, input.Selector, page.URL(), input.MaxLength)
			if err != nil {
				return nil, err
			}

			if input.Instruction == "" || t.provider == nil {
				text := formatContent(page.URL(), content, input.MaxLength)
				if input.Instruction != "" {
					text = "No language model is configured; returning the page content.\n\n" + text
				}
				return []execution.Content{execution.TextContent(text)}, nil
			}

			c.Logger().Debugf("answering extract instruction with %s", t.provider.GetModel())
			answer, err := t.provider.Complete(ctx, []llm.Message{
				llm.SystemMessage(extractSystemPrompt),
				llm.UserMessage(fmt.Sprintf("Instruction: %s\n\nPage: %s\n\n%s", input.Instruction, page.URL(), content.Markdown)),
			})
			if err != nil {
				return nil, fmt.Errorf("model call failed: %w", err)
			}
			return []execution.Content{execution.TextContent(strings.TrimSpace(answer))}, nil
		},
	}, nil
}

func formatContent(url string, content *pageContent, maxLength int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", url)
	if content.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", content.Title)
	}
	if content.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", content.Description)
	}
	b.WriteString("\n---\n\n")
	b.WriteString(content.Markdown)
	if content.Truncated {
		fmt.Fprintf(&b, "\n\n[Content truncated at %d characters]", maxLength)
	}
	return b.String()
}

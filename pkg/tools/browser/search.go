package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/browserbase-mcp/pkg/execution"
)

// SearchTool searches for text in the current page.
type SearchTool struct{}

// NewSearchTool creates a new search tool.
func NewSearchTool() *SearchTool {
	return &SearchTool{}
}

// Name returns the tool name.
func (t *SearchTool) Name() string {
	return "browserbase_search"
}

// Description returns the tool description.
func (t *SearchTool) Description() string {
	return "Search for text in the readable content of the current page. Returns matching lines with surrounding context."
}

// Schema returns the tool's JSON schema.
func (t *SearchTool) Schema() map[string]any {
	return execution.ObjectSchema(
		map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Text to search for",
			},
			"caseSensitive": map[string]any{
				"type":        "boolean",
				"description": "Whether the search is case-sensitive. Default: false",
			},
			"maxResults": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     100,
				"description": fmt.Sprintf("Maximum number of results. Default: %d", DefaultMaxSearchResults),
			},
		},
		[]string{"pattern"},
	)
}

type searchInput struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"caseSensitive"`
	MaxResults    int    `json:"maxResults"`
}

// searchMatch is one matching line with its neighbours.
type searchMatch struct {
	Line    int
	Text    string
	Context string
}

// Handle resolves the page.
func (t *SearchTool) Handle(_ context.Context, c *execution.Context, args json.RawMessage) (*execution.Invocation, error) {
	var input searchInput
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if input.MaxResults == 0 {
		input.MaxResults = DefaultMaxSearchResults
	}
	page, err := c.Page()
	if err != nil {
		return nil, err
	}

	return &execution.Invocation{
		Action: func(context.Context) ([]execution.Content, error) {
			raw, err := page.Content()
			if err != nil {
				return nil, fmt.Errorf("failed to read page content: %w", err)
			}
			content, err := cleanHTML(raw, "", page.URL(), 0)
			if err != nil {
				return nil, err
			}
			matches := searchText(content.Markdown, input.Pattern, input.CaseSensitive, input.MaxResults)
			return []execution.Content{execution.TextContent(formatMatches(input, matches))}, nil
		},
	}, nil
}

// searchText finds lines of text containing pattern.
func searchText(text, pattern string, caseSensitive bool, maxResults int) []searchMatch {
	needle := pattern
	if !caseSensitive {
		needle = strings.ToLower(pattern)
	}

	lines := strings.Split(text, "\n")
	var matches []searchMatch
	for i, line := range lines {
		hay := line
		if !caseSensitive {
			hay = strings.ToLower(line)
		}
		if !strings.Contains(hay, needle) {
			continue
		}

		lo, hi := i-1, i+2
		if lo < 0 {
			lo = 0
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		matches = append(matches, searchMatch{
			Line:    i + 1,
			Text:    strings.TrimSpace(line),
			Context: strings.TrimSpace(strings.Join(lines[lo:hi], "\n")),
		})
		if len(matches) == maxResults {
			break
		}
	}
	return matches
}

func formatMatches(input searchInput, matches []searchMatch) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for %q", input.Pattern)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches for %q\n", len(matches), input.Pattern)
	for i, m := range matches {
		fmt.Fprintf(&b, "\nMatch %d (line %d): %q\nContext:\n%s\n", i+1, m.Line, m.Text, m.Context)
	}
	if len(matches) == input.MaxResults {
		fmt.Fprintf(&b, "\n[Limited to %d results. There may be more matches in the page.]", input.MaxResults)
	}
	return strings.TrimRight(b.String(), "\n")
}

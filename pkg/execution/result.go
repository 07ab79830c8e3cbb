package execution

import (
	"fmt"
	"strings"
)

// Content types.
const (
	ContentText  = "text"
	ContentImage = "image"
)

// Content is one item of a tool result.
type Content struct {
	Type     string
	Text     string
	Data     []byte
	MimeType string
}

// TextContent returns a text item.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// TextContentf returns a formatted text item.
func TextContentf(format string, args ...any) Content {
	return TextContent(fmt.Sprintf(format, args...))
}

// ImageContent returns an image item.
func ImageContent(data []byte, mimeType string) Content {
	return Content{Type: ContentImage, Data: data, MimeType: mimeType}
}

// Result is the outcome of one tool call as reported to the caller.
type Result struct {
	Content []Content
	IsError bool
}

// ErrorResult returns an error result with a single text item.
func ErrorResult(format string, args ...any) *Result {
	return &Result{Content: []Content{TextContentf(format, args...)}, IsError: true}
}

// Text concatenates the text items of the result.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, c := range r.Content {
		if c.Type == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

package browser

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	errNoMatch             = errors.New("no element matches selector")
	errUnsupportedSelector = errors.New("unsupported selector")
)

var (
	sanitizer = bluemonday.UGCPolicy()

	markdownConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// pageContent is readable page content with its metadata.
type pageContent struct {
	Title       string
	Description string
	Markdown    string
	Truncated   bool
}

// cleanHTML turns raw page HTML into sanitized Markdown. A non-empty
// selector restricts the content to matching elements. Markdown longer than
// maxLength characters is truncated.
func cleanHTML(rawHTML, selector, pageURL string, maxLength int) (*pageContent, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &pageContent{
		Title:       extractTitle(doc),
		Description: extractMetaDescription(doc),
	}

	fragment := rawHTML
	if selector != "" {
		sel, err := parseSelector(selector)
		if err != nil {
			return nil, err
		}
		nodes := sel.matchAll(doc)
		if len(nodes) == 0 {
			return nil, fmt.Errorf("%w: %s", errNoMatch, selector)
		}
		var b strings.Builder
		for _, n := range nodes {
			if err := html.Render(&b, n); err != nil {
				return nil, fmt.Errorf("failed to render selection: %w", err)
			}
		}
		fragment = b.String()
	}

	sanitized := sanitizer.Sanitize(fragment)
	var md string
	if strings.HasPrefix(pageURL, "http://") || strings.HasPrefix(pageURL, "https://") {
		md, err = markdownConverter.ConvertString(sanitized, converter.WithDomain(pageURL))
	} else {
		md, err = markdownConverter.ConvertString(sanitized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to convert to markdown: %w", err)
	}

	result.Markdown, result.Truncated = truncateRunes(strings.TrimSpace(md), maxLength)
	return result, nil
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// selector is the supported CSS subset: a tag name, an id and class names,
// as in "article", "#main", ".post" or "div.post.featured".
type selector struct {
	tag     string
	id      string
	classes []string
}

func parseSelector(s string) (selector, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " >+~[]:*,()") {
		return selector{}, fmt.Errorf("%w: %q (use a tag, #id or .class)", errUnsupportedSelector, s)
	}

	var sel selector
	rest := s
	if i := strings.IndexAny(rest, ".#"); i != 0 {
		if i < 0 {
			i = len(rest)
		}
		sel.tag = strings.ToLower(rest[:i])
		rest = rest[i:]
	}
	for rest != "" {
		marker := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, ".#")
		if end < 0 {
			end = len(rest)
		}
		part := rest[:end]
		rest = rest[end:]
		if part == "" {
			return selector{}, fmt.Errorf("%w: %q", errUnsupportedSelector, s)
		}
		if marker == '#' {
			if sel.id != "" {
				return selector{}, fmt.Errorf("%w: %q has two ids", errUnsupportedSelector, s)
			}
			sel.id = part
		} else {
			sel.classes = append(sel.classes, part)
		}
	}
	return sel, nil
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && n.Data != sel.tag {
		return false
	}
	if sel.id != "" && attr(n, "id") != sel.id {
		return false
	}
	if len(sel.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range sel.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// matchAll returns the outermost matching elements in document order.
func (sel selector) matchAll(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findElement returns the first element in document order satisfying pred.
func findElement(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	n := findElement(doc, func(n *html.Node) bool { return n.Data == "title" })
	if n == nil || n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

// extractMetaDescription extracts the meta description from the document
func extractMetaDescription(doc *html.Node) string {
	n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "name") == "description" && attr(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

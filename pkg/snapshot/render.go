package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
)

// capturer renders an accessibility tree and collects frame handles as it
// descends into embedded frames.
type capturer struct {
	b      strings.Builder
	frames []driver.Frame
}

func (c *capturer) renderNode(frame driver.Frame, n *driver.AXNode, prefix string, depth int) {
	if n == nil {
		return
	}

	line := strings.Repeat("  ", depth) + "- " + describe(n, prefix)

	if n.Frame && n.Ref != "" {
		c.writeLine(line + ":")
		c.renderFrame(frame, n.Ref, depth+1)
		return
	}

	if len(n.Children) == 0 {
		c.writeLine(line)
		return
	}
	c.writeLine(line + ":")
	for _, child := range n.Children {
		c.renderNode(frame, child, prefix, depth+1)
	}
}

// renderFrame captures the embedded frame behind ref, assigns it the next
// frame index and renders its tree with that index as the reference prefix.
func (c *capturer) renderFrame(parent driver.Frame, ref string, depth int) {
	child, err := parent.FrameByRef(ref)
	if err != nil {
		c.writeError(depth, err)
		return
	}
	tree, err := child.AccessibilitySnapshot()
	if err != nil {
		c.writeError(depth, err)
		return
	}

	index := len(c.frames)
	c.frames = append(c.frames, child)
	c.renderNode(child, tree, fmt.Sprintf("f%d", index), depth)
}

func (c *capturer) writeError(depth int, err error) {
	c.writeLine(strings.Repeat("  ", depth) + "- error " + strconv.Quote("frame snapshot failed: "+err.Error()))
}

func (c *capturer) writeLine(line string) {
	c.b.WriteString(line)
	c.b.WriteByte('\n')
}

// describe renders one node: role, quoted name, state attributes and ref.
func describe(n *driver.AXNode, prefix string) string {
	role := n.Role
	if role == "" {
		role = "generic"
	}

	if role == "text" {
		return "text: " + strconv.Quote(n.Name)
	}

	var b strings.Builder
	b.WriteString(role)
	if n.Name != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(n.Name))
	}
	if n.Level > 0 {
		fmt.Fprintf(&b, " [level=%d]", n.Level)
	}
	if n.Checked != nil {
		fmt.Fprintf(&b, " [checked=%t]", *n.Checked)
	}
	if n.Disabled {
		b.WriteString(" [disabled]")
	}
	if n.Value != "" {
		fmt.Fprintf(&b, " [value=%s]", strconv.Quote(n.Value))
	}
	if n.Ref != "" {
		fmt.Fprintf(&b, " [ref=%s%s]", prefix, n.Ref)
	}
	return b.String()
}

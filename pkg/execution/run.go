package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/entrhq/browserbase-mcp/pkg/snapshot"
)

const (
	successText         = "Success"
	noSnapshotText      = "No snapshot available"
	pageUnavailableText = "Page state unavailable"
)

type sessionArgs struct {
	SessionID string `json:"sessionId"`
}

// Run executes one tool call against the context.
//
// Tool-level failures (invalid arguments, unreachable session, failed
// action) are reported as a Result with IsError set, and leave the context
// pointing at the session it targeted before the call. Run returns an error
// only when it is called with a nil tool.
func (c *Context) Run(ctx context.Context, tool *CompiledTool, rawArgs json.RawMessage) (*Result, error) {
	if tool == nil {
		return nil, errors.New("run: nil tool")
	}
	name := tool.Name()

	args, err := tool.Validate(rawArgs)
	if err != nil {
		c.logger.Debugf("%s: invalid arguments: %v", name, err)
		return ErrorResult("Invalid arguments for %s: %v", name, err), nil
	}

	var target sessionArgs
	if err := json.Unmarshal(args, &target); err != nil {
		return ErrorResult("Invalid arguments for %s: %v", name, err), nil
	}

	previous := c.currentSessionID
	creates := tool.Kind() == KindSessionCreate
	rollback := func() {
		if !creates && c.currentSessionID != previous {
			c.logger.Debugf("%s: restoring session %s", name, previous)
			c.currentSessionID = previous
		}
	}

	if target.SessionID != "" && target.SessionID != c.currentSessionID {
		c.logger.Debugf("%s: switching session %s -> %s", name, c.currentSessionID, target.SessionID)
		c.currentSessionID = target.SessionID
	}

	if !creates {
		if _, err := c.Page(); err != nil {
			id := c.currentSessionID
			rollback()
			return ErrorResult("Session %s is not available: %v", id, err), nil
		}
	}

	inv, err := tool.Handle(ctx, c, args)
	if err != nil {
		rollback()
		return toolError(name, err), nil
	}
	if inv == nil {
		inv = &Invocation{}
	}

	var content []Content
	if inv.Action != nil {
		content, err = inv.Action(ctx)
		if err != nil {
			c.logger.Warnf("%s failed: %v", name, err)
			rollback()
			return toolError(name, err), nil
		}
	}

	var snap *snapshot.Snapshot
	if inv.CaptureSnapshot {
		snap = c.settleAndCapture(ctx, name)
	}

	return c.assemble(content, snap), nil
}

func (c *Context) settleAndCapture(ctx context.Context, name string) *snapshot.Snapshot {
	if err := sleepWithContext(ctx, c.opts.SettleDelay); err != nil {
		c.logger.Debugf("%s: settle delay interrupted: %v", name, err)
		return nil
	}
	snap := c.CaptureSnapshot()
	if snap == nil {
		c.logger.Warnf("%s: post-action snapshot unavailable", name)
	}
	return snap
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// toolError reports a failed call. Reference errors are phrased as argument
// problems since they come from a stale or mistyped ref.
func toolError(name string, err error) *Result {
	if snapshot.IsReferenceError(err) {
		return ErrorResult("Invalid element reference for %s: %v", name, err)
	}
	return ErrorResult("Error running %s: %v", name, err)
}

// assemble builds the final result: the action's content, then a block with
// the page URL, title and snapshot.
func (c *Context) assemble(content []Content, snap *snapshot.Snapshot) *Result {
	if len(content) == 0 {
		content = []Content{TextContent(successText)}
	}

	var b strings.Builder
	b.WriteString("### Page state\n")
	if page, err := c.livePage(); err != nil {
		fmt.Fprintf(&b, "- %s: %v\n", pageUnavailableText, err)
	} else {
		fmt.Fprintf(&b, "- Page URL: %s\n", page.URL())
		if title, err := page.Title(); err != nil {
			fmt.Fprintf(&b, "- Page Title: unavailable (%v)\n", err)
		} else {
			fmt.Fprintf(&b, "- Page Title: %s\n", title)
		}
	}

	if snap == nil {
		fmt.Fprintf(&b, "- %s", noSnapshotText)
	} else {
		b.WriteString("- Page Snapshot:\n```yaml\n")
		b.WriteString(c.truncate(snap.Text()))
		b.WriteString("\n```")
	}

	return &Result{Content: append(content, TextContent(b.String()))}
}

func (c *Context) truncate(text string) string {
	limit := c.opts.MaxSnapshotChars
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf("\n# snapshot truncated at %d characters", limit)
}

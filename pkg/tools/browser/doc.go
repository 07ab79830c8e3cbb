// Package browser provides the browser automation tools served over MCP.
//
// Every tool is an execution.Tool: it reads its arguments, resolves what it
// needs from the execution context (the current page, an element by snapshot
// reference) and returns an Invocation whose Action performs the side effect.
// The execution layer then settles the page, captures a fresh snapshot when
// asked to, and appends the page state to the result.
//
// # Element references
//
// Interaction tools (click, type, hover, select_option) address elements by
// the references shown in the last snapshot, such as "e12" for the root
// document or "f1e3" for an element inside the first embedded frame. A
// reference that no longer matches is reported as an invalid argument rather
// than a browser failure.
//
// # Sessions
//
// Each tool accepts an optional "sessionId". Calls without one run against
// the current session, which is the configured default until
// browserbase_session_create selects another.
//
// # Example Usage
//
//	tools, err := browser.NewToolset(browser.Options{
//	    Guard: guard,
//	    LLM:   provider,
//	})
//	result, err := execCtx.Run(ctx, navigate, json.RawMessage(`{"url":"https://example.com"}`))
package browser

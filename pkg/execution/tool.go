package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Tool is one operation the server exposes. Tools are stateless; the state
// they act on lives in the Context passed to Handle.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g. "browserbase_navigate").
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Schema returns the JSON schema for this tool's input parameters.
	Schema() map[string]any

	// Handle prepares an invocation from validated arguments. It must not
	// perform the tool's side effects itself; those belong in the returned
	// Invocation's Action.
	Handle(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error)
}

// Invocation is the deferred work of one tool call.
type Invocation struct {
	// Action performs the tool's side effects. A nil Action succeeds with no
	// content.
	Action func(ctx context.Context) ([]Content, error)

	// CaptureSnapshot requests a snapshot after a successful Action.
	CaptureSnapshot bool
}

// Kind classifies tools whose calls the execution and continuity layers
// treat specially.
type Kind int

const (
	KindDefault Kind = iota
	// KindSessionCreate tools create the session they target, so the session
	// is not resolved before the call.
	KindSessionCreate
	// KindSessionClose tools end a session; no state outlives them.
	KindSessionClose
	// KindSnapshot tools capture a fresh snapshot themselves.
	KindSnapshot
	// KindNavigate tools replace the page, invalidating any prior snapshot.
	KindNavigate
)

// Classified is an optional interface for tools of a non-default Kind.
type Classified interface {
	Kind() Kind
}

// KindOf returns the Kind of t.
func KindOf(t Tool) Kind {
	if c, ok := t.(Classified); ok {
		return c.Kind()
	}
	return KindDefault
}

// ObjectSchema builds an object schema from properties and required names.
// Every tool accepts an optional "sessionId" targeting a session other than
// the current one.
func ObjectSchema(properties map[string]any, required []string) map[string]any {
	props := map[string]any{
		"sessionId": map[string]any{
			"type":        "string",
			"description": "Session to run against. Defaults to the current session.",
		},
	}
	for k, v := range properties {
		props[k] = v
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// CompiledTool is a Tool whose input schema has been compiled. Schemas are
// compiled once, at registration, so a malformed schema fails at startup
// instead of on the first call.
type CompiledTool struct {
	Tool

	kind      Kind
	rawSchema json.RawMessage
	schema    *jsonschema.Schema
}

// Compile compiles the input schema of t.
func Compile(t Tool) (*CompiledTool, error) {
	if t == nil {
		return nil, fmt.Errorf("nil tool")
	}
	raw, err := json.Marshal(t.Schema())
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", t.Name(), err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tool %s: unmarshal schema: %w", t.Name(), err)
	}
	resource := t.Name() + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("tool %s: add schema resource: %w", t.Name(), err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", t.Name(), err)
	}

	return &CompiledTool{Tool: t, kind: KindOf(t), rawSchema: raw, schema: schema}, nil
}

// Kind returns the tool's Kind.
func (t *CompiledTool) Kind() Kind {
	return t.kind
}

// InputSchema returns the schema as JSON.
func (t *CompiledTool) InputSchema() json.RawMessage {
	return t.rawSchema
}

// Validate checks raw arguments against the schema. Empty arguments are
// treated as an empty object. The returned error aggregates every violation.
func (t *CompiledTool) Validate(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := t.schema.Validate(payload); err != nil {
		return nil, err
	}
	return raw, nil
}

// Toolset holds the compiled tools served by one process.
type Toolset struct {
	mu    sync.RWMutex
	tools map[string]*CompiledTool
}

// NewToolset compiles and registers tools.
func NewToolset(tools ...Tool) (*Toolset, error) {
	ts := &Toolset{tools: make(map[string]*CompiledTool)}
	for _, t := range tools {
		if err := ts.Register(t); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// Register compiles t and adds it. Registering a duplicate name fails.
func (ts *Toolset) Register(t Tool) error {
	compiled, err := Compile(t)
	if err != nil {
		return err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.tools[t.Name()]; exists {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	ts.tools[t.Name()] = compiled
	return nil
}

// Lookup returns the tool registered under name.
func (ts *Toolset) Lookup(name string) (*CompiledTool, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (ts *Toolset) List() []*CompiledTool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	list := make([]*CompiledTool, 0, len(ts.tools))
	for _, t := range ts.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

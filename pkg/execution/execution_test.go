package execution

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/driver/drivertest"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/session"
	"github.com/entrhq/browserbase-mcp/pkg/snapshot"
)

const mainSession = "main"

// stubTool is a configurable Tool.
type stubTool struct {
	name    string
	kind    Kind
	schema  map[string]any
	handle  func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error)
	handled int
}

func (t *stubTool) Name() string           { return t.name }
func (t *stubTool) Description() string    { return "stub" }
func (t *stubTool) Kind() Kind             { return t.kind }
func (t *stubTool) Schema() map[string]any { return t.schema }

func (t *stubTool) Handle(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
	t.handled++
	if t.handle == nil {
		return &Invocation{CaptureSnapshot: true}, nil
	}
	return t.handle(ctx, c, args)
}

func compile(t *testing.T, tool Tool) *CompiledTool {
	t.Helper()
	if st, ok := tool.(*stubTool); ok && st.schema == nil {
		st.schema = ObjectSchema(nil, nil)
	}
	compiled, err := Compile(tool)
	require.NoError(t, err)
	return compiled
}

func examplePage() *drivertest.Page {
	return drivertest.NewPage("https://example.com", "Example Domain", &driver.AXNode{
		Role: "document",
		Children: []*driver.AXNode{
			{Role: "heading", Name: "Example Domain", Level: 1, Ref: "e1"},
			{Role: "link", Name: "More information...", Ref: "e2"},
		},
	})
}

func newTestContext(t *testing.T) (*Context, *drivertest.Factory) {
	t.Helper()
	factory := drivertest.NewFactory()
	factory.NewPage = examplePage
	reg := session.NewRegistry(factory, session.Options{DefaultSessionID: mainSession}, logging.Discard("session"))
	c := New(reg, Options{DefaultSessionID: mainSession}, logging.Discard("execution"))
	return c, factory
}

func TestRun_Success(t *testing.T) {
	c, _ := newTestContext(t)
	tool := compile(t, &stubTool{name: "navigate"})

	result, err := c.Run(context.Background(), tool, nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := result.Text()
	assert.True(t, strings.HasPrefix(text, "Success"))
	assert.Contains(t, text, "Page URL: https://example.com")
	assert.Contains(t, text, "Page Title: Example Domain")
	assert.Contains(t, text, `link "More information..." [ref=e2]`)
	require.NotNil(t, c.Snapshot())
}

func TestRun_ActionContentComesFirst(t *testing.T) {
	c, _ := newTestContext(t)
	tool := compile(t, &stubTool{
		name: "get_url",
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return &Invocation{Action: func(ctx context.Context) ([]Content, error) {
				return []Content{TextContent("hello")}, nil
			}}, nil
		},
	})

	result, err := c.Run(context.Background(), tool, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Len(t, result.Content, 2)
	assert.Equal(t, "hello", result.Content[0].Text)
	assert.Contains(t, result.Content[1].Text, noSnapshotText)
}

func TestRun_InvalidArguments(t *testing.T) {
	c, factory := newTestContext(t)
	stub := &stubTool{
		name: "navigate",
		schema: ObjectSchema(map[string]any{
			"url": map[string]any{"type": "string"},
		}, []string{"url"}),
	}
	tool := compile(t, stub)

	for _, args := range []string{`{"sessionId":"other"}`, `{"url":42}`, `not json`} {
		result, err := c.Run(context.Background(), tool, json.RawMessage(args))
		require.NoError(t, err)
		assert.True(t, result.IsError, args)
		assert.Contains(t, result.Text(), "Invalid arguments", args)
	}

	assert.Equal(t, 0, stub.handled)
	assert.Equal(t, mainSession, c.CurrentSessionID())
	assert.Equal(t, 0, factory.CreatedCount(), "validation failures have no side effects")
}

func TestRun_UnreachableSessionRollsBack(t *testing.T) {
	c, _ := newTestContext(t)
	stub := &stubTool{name: "click"}
	tool := compile(t, stub)

	result, err := c.Run(context.Background(), tool, json.RawMessage(`{"sessionId":"X"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Session X is not available")
	assert.Equal(t, mainSession, c.CurrentSessionID())
	assert.Equal(t, 0, stub.handled)
}

func TestRun_ActionFailureRollsBack(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Registry().Create(driver.SessionOptions{ID: "other"})
	require.NoError(t, err)

	tool := compile(t, &stubTool{
		name: "click",
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return &Invocation{
				Action:          func(ctx context.Context) ([]Content, error) { return nil, errors.New("element detached") },
				CaptureSnapshot: true,
			}, nil
		},
	})

	result, err := c.Run(context.Background(), tool, json.RawMessage(`{"sessionId":"other"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "element detached")
	assert.Equal(t, mainSession, c.CurrentSessionID())
	assert.Nil(t, c.SnapshotFor("other"), "no snapshot after a failed action")
}

func TestRun_HandlerFailureRollsBack(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Registry().Create(driver.SessionOptions{ID: "other"})
	require.NoError(t, err)

	tool := compile(t, &stubTool{
		name: "click",
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return nil, errors.New("bad handler")
		},
	})

	result, err := c.Run(context.Background(), tool, json.RawMessage(`{"sessionId":"other"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, mainSession, c.CurrentSessionID())
}

func TestRun_SuccessfulSwitchPersists(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Registry().Create(driver.SessionOptions{ID: "other"})
	require.NoError(t, err)

	result, err := c.Run(context.Background(), compile(t, &stubTool{name: "snapshot"}), json.RawMessage(`{"sessionId":"other"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "other", c.CurrentSessionID())
	assert.NotNil(t, c.SnapshotFor("other"))
	assert.Nil(t, c.SnapshotFor(mainSession))
}

func TestRun_SessionCreateIsNotResolvedOrRolledBack(t *testing.T) {
	c, factory := newTestContext(t)
	tool := compile(t, &stubTool{
		name: "session_create",
		kind: KindSessionCreate,
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return &Invocation{Action: func(ctx context.Context) ([]Content, error) {
				return nil, errors.New("quota exceeded")
			}}, nil
		},
	})

	result, err := c.Run(context.Background(), tool, json.RawMessage(`{"sessionId":"fresh"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "fresh", c.CurrentSessionID())
	assert.Equal(t, 0, factory.CreatedCount())
}

func TestRun_SnapshotFailureDoesNotFailCall(t *testing.T) {
	c, factory := newTestContext(t)
	factory.NewPage = func() *drivertest.Page {
		p := examplePage()
		p.SnapshotErr = errors.New("target crashed")
		return p
	}

	result, err := c.Run(context.Background(), compile(t, &stubTool{name: "navigate"}), nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Text(), noSnapshotText)
	assert.Contains(t, result.Text(), "Page URL: https://example.com")
}

func TestRun_PageUnavailableMarker(t *testing.T) {
	c, _ := newTestContext(t)
	tool := compile(t, &stubTool{
		name: "session_close",
		kind: KindSessionClose,
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return &Invocation{Action: func(ctx context.Context) ([]Content, error) {
				c.Registry().CloseByID(c.CurrentSessionID())
				return []Content{TextContent("closed")}, nil
			}}, nil
		},
	})

	result, err := c.Run(context.Background(), tool, nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Text(), pageUnavailableText)
	assert.Equal(t, 0, c.Registry().Len(), "assembling the result must not recreate the session")
}

func TestRun_SettleDelayIsCancellable(t *testing.T) {
	c, _ := newTestContext(t)
	c.opts.SettleDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	tool := compile(t, &stubTool{
		name: "click",
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			return &Invocation{
				Action:          func(context.Context) ([]Content, error) { cancel(); return nil, nil },
				CaptureSnapshot: true,
			}, nil
		},
	})

	done := make(chan *Result, 1)
	go func() {
		result, _ := c.Run(ctx, tool, nil)
		done <- result
	}()

	select {
	case result := <-done:
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), noSnapshotText)
	case <-time.After(5 * time.Second):
		t.Fatal("settle delay did not observe cancellation")
	}
}

func TestRun_StaleFrameReferenceIsAValidationError(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Run(context.Background(), compile(t, &stubTool{name: "snapshot"}), nil)
	require.NoError(t, err)

	tool := compile(t, &stubTool{
		name: "click",
		handle: func(ctx context.Context, c *Context, args json.RawMessage) (*Invocation, error) {
			el, err := c.ResolveElement("f1e2")
			if err != nil {
				return nil, err
			}
			return &Invocation{Action: func(context.Context) ([]Content, error) { return nil, el.Click() }}, nil
		},
	})

	result, err := c.Run(context.Background(), tool, nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid element reference")
	assert.Contains(t, result.Text(), "frame index out of range")
}

func TestRun_NilTool(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	c, _ := newTestContext(t)
	c.opts.MaxSnapshotChars = 5

	assert.Equal(t, "abc", c.truncate("abc"))
	assert.Equal(t, "abcde\n# snapshot truncated at 5 characters", c.truncate("abcdefgh"))
	assert.True(t, strings.HasPrefix(c.truncate("abcdéfgh"), "abcd\n"), "never splits a rune")
}

func TestCaptureSnapshot_ClearsStaleOnFailure(t *testing.T) {
	c, factory := newTestContext(t)
	require.NotNil(t, c.CaptureSnapshot())

	factory.Created[0].P.SnapshotErr = errors.New("gone")
	assert.Nil(t, c.CaptureSnapshot())
	assert.Nil(t, c.Snapshot())
}

func TestReconnectSnapshot(t *testing.T) {
	c, factory := newTestContext(t)
	first := c.CaptureSnapshot()
	require.NotNil(t, first)

	restored := snapshot.Deserialize(first.Serialize())
	require.NotNil(t, restored)
	c.SetSnapshot(mainSession, restored)

	_, err := c.ResolveElement("e2")
	assert.ErrorIs(t, err, snapshot.ErrDisconnected)

	require.True(t, c.ReconnectSnapshot(mainSession))
	el, err := c.ResolveElement("e2")
	require.NoError(t, err)
	assert.Same(t, factory.Created[0].P.Elements["e2"], el)
}

func TestReconnectSnapshot_CapturesWhenMissing(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.Registry().Create(driver.SessionOptions{ID: "other"})
	require.NoError(t, err)

	require.True(t, c.ReconnectSnapshot("other"))
	assert.NotNil(t, c.SnapshotFor("other"))
	assert.Equal(t, mainSession, c.CurrentSessionID())

	assert.False(t, c.ReconnectSnapshot("missing"))
}

func TestResolveElement_NoSnapshot(t *testing.T) {
	c, _ := newTestContext(t)
	_, err := c.ResolveElement("e1")
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.True(t, snapshot.IsReferenceError(err))
}

func TestResources(t *testing.T) {
	c, _ := newTestContext(t)

	r := c.AddResource(ResourceScreenshot, "home", "image/png", []byte{1, 2, 3})
	assert.Equal(t, "browserbase://screenshot/home", r.URI)
	c.AddResource(ResourceScreenshot, "after-login", "image/png", []byte{4})
	c.AddResource(ResourceScreenshot, "home", "image/png", []byte{5})

	list := c.ListResources()
	require.Len(t, list, 2)
	assert.Equal(t, "home", list[0].Name)
	assert.Equal(t, []byte{5}, list[0].Data)

	got, err := c.ReadResource("browserbase://screenshot/after-login")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got.Data)

	_, err = c.ReadResource("browserbase://screenshot/missing")
	assert.ErrorIs(t, err, ErrResourceNotFound)
	_, err = c.ReadResource("browserbase://other/home")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	for _, uri := range []string{"", "http://screenshot/home", "browserbase://screenshot", "browserbase:///home", "browserbase://screenshot/"} {
		_, err = c.ReadResource(uri)
		assert.ErrorIs(t, err, ErrMalformedURI, uri)
	}
}

func TestToolset(t *testing.T) {
	a := &stubTool{name: "b_tool", schema: ObjectSchema(nil, nil)}
	b := &stubTool{name: "a_tool", schema: ObjectSchema(nil, nil)}

	ts, err := NewToolset(a, b)
	require.NoError(t, err)

	list := ts.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a_tool", list[0].Name())

	got, ok := ts.Lookup("b_tool")
	require.True(t, ok)
	assert.Equal(t, KindDefault, got.Kind())
	assert.JSONEq(t, `{"type":"object","properties":{"sessionId":{"type":"string","description":"Session to run against. Defaults to the current session."}}}`, string(got.InputSchema()))

	err = ts.Register(&stubTool{name: "a_tool", schema: ObjectSchema(nil, nil)})
	assert.Error(t, err)
}

func TestCompile_RejectsInvalidSchema(t *testing.T) {
	_, err := Compile(&stubTool{name: "broken", schema: map[string]any{"type": "not-a-type"}})
	assert.Error(t, err)

	_, err = Compile(nil)
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSessionCreate, KindOf(&stubTool{kind: KindSessionCreate}))
}

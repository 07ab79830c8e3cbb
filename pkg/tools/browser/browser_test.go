package browser

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/driver/drivertest"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/llm"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
	"github.com/entrhq/browserbase-mcp/pkg/security/urlguard"
	"github.com/entrhq/browserbase-mcp/pkg/session"
)

const exampleHTML = `<html>
<head>
	<title>Example Domain</title>
	<meta name="description" content="An example page">
	<script>alert('evil');</script>
</head>
<body>
	<div id="main">
		<h1>Example Domain</h1>
		<p class="intro">This domain is for use in illustrative examples.</p>
		<a href="/more">More information...</a>
	</div>
	<footer><p>Footer text</p></footer>
</body>
</html>`

func examplePage() *drivertest.Page {
	page := drivertest.NewPage("https://example.com", "Example Domain", &driver.AXNode{
		Role: "document",
		Children: []*driver.AXNode{
			{Role: "heading", Name: "Example Domain", Level: 1},
			{Role: "link", Name: "More information...", Ref: "e2"},
			{Role: "textbox", Name: "Search", Ref: "e3"},
			{Role: "combobox", Name: "Country", Ref: "e4"},
		},
	})
	page.HTML = exampleHTML
	return page
}

// fakeLLM replies with a fixed answer and records what it was sent.
type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	messages []llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages...)
	return f.reply, nil
}

func (f *fakeLLM) GetModel() string { return "fake" }

func (f *fakeLLM) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parts []string
	for _, m := range f.messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

type fixture struct {
	c       *execution.Context
	tools   *execution.Toolset
	factory *drivertest.Factory
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	factory := drivertest.NewFactory()
	factory.NewPage = examplePage
	reg := session.NewRegistry(factory, session.Options{DefaultSessionID: "main", MaxSessions: 5}, logging.Discard("session"))

	tools, err := NewToolset(opts)
	require.NoError(t, err)

	return &fixture{
		c:       execution.New(reg, execution.Options{DefaultSessionID: "main"}, logging.Discard("execution")),
		tools:   tools,
		factory: factory,
	}
}

func (f *fixture) run(t *testing.T, name, args string) *execution.Result {
	t.Helper()
	tool, ok := f.tools.Lookup(name)
	require.True(t, ok, "tool %s not registered", name)
	result, err := f.c.Run(context.Background(), tool, json.RawMessage(args))
	require.NoError(t, err)
	return result
}

func (f *fixture) mustRun(t *testing.T, name, args string) *execution.Result {
	t.Helper()
	result := f.run(t, name, args)
	require.False(t, result.IsError, result.Text())
	return result
}

func (f *fixture) page(t *testing.T) *drivertest.Page {
	t.Helper()
	require.NotEmpty(t, f.factory.Created)
	return f.factory.Created[0].P
}

func TestNewToolset_RegistersCatalogue(t *testing.T) {
	tools, err := NewToolset(Options{})
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.List() {
		names = append(names, tool.Name())
	}
	for _, want := range []string{
		"browserbase_session_create", "browserbase_session_close", "browserbase_session_list",
		"browserbase_navigate", "browserbase_navigate_back", "browserbase_navigate_forward",
		"browserbase_snapshot", "browserbase_click", "browserbase_hover", "browserbase_type",
		"browserbase_select_option", "browserbase_press_key", "browserbase_take_screenshot",
		"browserbase_get_url", "browserbase_get_title", "browserbase_extract",
		"browserbase_observe", "browserbase_search", "browserbase_wait", "browserbase_resize",
	} {
		assert.Contains(t, names, want)
	}
	assert.Len(t, names, 20)
}

func TestToolKinds(t *testing.T) {
	tools, err := NewToolset(Options{})
	require.NoError(t, err)

	kinds := map[string]execution.Kind{
		"browserbase_session_create":   execution.KindSessionCreate,
		"browserbase_session_close":    execution.KindSessionClose,
		"browserbase_snapshot":         execution.KindSnapshot,
		"browserbase_navigate":         execution.KindNavigate,
		"browserbase_navigate_back":    execution.KindNavigate,
		"browserbase_navigate_forward": execution.KindNavigate,
		"browserbase_click":            execution.KindDefault,
	}
	for name, want := range kinds {
		tool, ok := tools.Lookup(name)
		require.True(t, ok)
		assert.Equal(t, want, tool.Kind(), name)
	}
}

func TestStaleFrameReferenceIsInvalidArgument(t *testing.T) {
	f := newFixture(t, Options{})

	f.mustRun(t, "browserbase_session_create", `{}`)
	f.mustRun(t, "browserbase_navigate", `{"url":"https://example.com"}`)

	result := f.run(t, "browserbase_click", `{"ref":"f1e2"}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid element reference for browserbase_click")
	assert.Contains(t, result.Text(), "frame index out of range")
	assert.Zero(t, f.page(t).Elements["e2"].ClickCount())
}

func TestSessionCreate_ReusesLiveSession(t *testing.T) {
	f := newFixture(t, Options{})

	first := f.mustRun(t, "browserbase_session_create", `{}`)
	assert.Contains(t, first.Text(), "Created session main")
	assert.Contains(t, first.Text(), "Page Snapshot:")

	second := f.mustRun(t, "browserbase_session_create", `{}`)
	assert.Contains(t, second.Text(), "Reusing existing session main")
	assert.Equal(t, 1, f.factory.CreatedCount())
}

func TestSessionCreate_NamedSessionWithViewport(t *testing.T) {
	f := newFixture(t, Options{Defaults: driver.SessionOptions{Headless: true}})

	f.mustRun(t, "browserbase_session_create", `{"sessionId":"s2","viewport":{"width":800,"height":600}}`)

	assert.Equal(t, "s2", f.c.CurrentSessionID())
	require.Len(t, f.factory.Options, 1)
	opts := f.factory.Options[0]
	assert.Equal(t, "s2", opts.ID)
	assert.Equal(t, 800, opts.Width)
	assert.Equal(t, 600, opts.Height)
	assert.True(t, opts.Headless)
}

func TestSessionCreate_RejectsTinyViewport(t *testing.T) {
	f := newFixture(t, Options{})
	result := f.run(t, "browserbase_session_create", `{"viewport":{"width":10,"height":600}}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid arguments")
	assert.Zero(t, f.factory.CreatedCount())
}

func TestSessionClose(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{"sessionId":"s2"}`)

	result := f.mustRun(t, "browserbase_session_close", `{}`)
	assert.Contains(t, result.Text(), "Closed session s2")
	assert.Equal(t, "main", f.c.CurrentSessionID())
	assert.Nil(t, f.c.SnapshotFor("s2"))
	assert.Equal(t, 1, f.factory.Created[0].CloseCount())
	assert.Contains(t, result.Text(), "Page state unavailable")
}

func TestSessionList(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)
	f.mustRun(t, "browserbase_session_create", `{"sessionId":"other"}`)

	result := f.mustRun(t, "browserbase_session_list", `{}`)
	assert.Contains(t, result.Text(), "Open sessions: 2")
	assert.Contains(t, result.Text(), "other (current)")
}

func TestNavigate_Policy(t *testing.T) {
	guard, err := urlguard.New(nil, []string{"*.evil.com"})
	require.NoError(t, err)
	f := newFixture(t, Options{Guard: guard})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.run(t, "browserbase_navigate", `{"url":"https://www.evil.com/login"}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "not allowed")
	assert.Equal(t, "https://example.com", f.page(t).URL())

	result = f.run(t, "browserbase_navigate", `{"url":"file:///etc/passwd"}`)
	assert.True(t, result.IsError)
}

func TestNavigate_History(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	f.mustRun(t, "browserbase_navigate", `{"url":"https://a.test/"}`)
	f.mustRun(t, "browserbase_navigate", `{"url":"https://b.test/"}`)

	back := f.mustRun(t, "browserbase_navigate_back", `{}`)
	assert.Contains(t, back.Text(), "Navigated back to https://a.test/")

	forward := f.mustRun(t, "browserbase_navigate_forward", `{}`)
	assert.Contains(t, forward.Text(), "Page URL: https://b.test/")

	result := f.run(t, "browserbase_navigate_forward", `{}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "no next page")
}

func TestElementInteraction(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)
	elements := f.page(t).Elements

	result := f.mustRun(t, "browserbase_click", `{"ref":"e2","element":"More information link"}`)
	assert.Contains(t, result.Text(), "Clicked More information link (e2)")
	assert.Equal(t, 1, elements["e2"].ClickCount())

	f.mustRun(t, "browserbase_hover", `{"ref":"e2"}`)
	assert.Equal(t, 1, elements["e2"].Hovers)

	result = f.mustRun(t, "browserbase_type", `{"ref":"e3","text":"hello","submit":true}`)
	assert.Contains(t, result.Text(), `Typed "hello" into e3 and submitted`)
	assert.Equal(t, []string{"hello"}, elements["e3"].Filled)
	assert.Equal(t, []string{"Enter"}, elements["e3"].Pressed)

	result = f.mustRun(t, "browserbase_select_option", `{"ref":"e4","values":["fr","de"]}`)
	assert.Contains(t, result.Text(), "Selected fr, de in e4")
	assert.Equal(t, []string{"fr", "de"}, elements["e4"].Selected)
}

func TestElementInteraction_UnknownRef(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.run(t, "browserbase_click", `{"ref":"e99"}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid element reference")
	assert.Contains(t, result.Text(), "element not found")
}

func TestElementInteraction_RequiresRef(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.run(t, "browserbase_select_option", `{"ref":"e4","values":[]}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid arguments")

	result = f.run(t, "browserbase_click", `{}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "Invalid arguments")
}

func TestPressKey(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.mustRun(t, "browserbase_press_key", `{"key":"Control+A"}`)
	assert.Contains(t, result.Text(), "Pressed Control+A")
	assert.Equal(t, []string{"Control+A"}, f.page(t).Keys)
}

func TestScreenshot(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.mustRun(t, "browserbase_take_screenshot", `{"name":"home","fullPage":true}`)
	require.Len(t, result.Content, 3)
	assert.Contains(t, result.Content[0].Text, "browserbase://screenshot/home")
	assert.Equal(t, execution.ContentImage, result.Content[1].Type)
	assert.Equal(t, f.page(t).PNG, result.Content[1].Data)
	assert.Contains(t, result.Text(), "No snapshot available")

	r, err := f.c.ReadResource("browserbase://screenshot/home")
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.Format)

	f.mustRun(t, "browserbase_take_screenshot", `{}`)
	resources := f.c.ListResources()
	require.Len(t, resources, 2)
	assert.True(t, strings.HasPrefix(resources[1].Name, "screenshot-"))

	result = f.run(t, "browserbase_take_screenshot", `{"name":"../escape"}`)
	assert.True(t, result.IsError)
}

func TestPageInfo(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	url := f.mustRun(t, "browserbase_get_url", `{}`)
	assert.Equal(t, "https://example.com", url.Content[0].Text)

	title := f.mustRun(t, "browserbase_get_title", `{}`)
	assert.Equal(t, "Example Domain", title.Content[0].Text)
}

func TestExtract_Markdown(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_extract", `{}`).Content[0].Text
	assert.Contains(t, text, "Title: Example Domain")
	assert.Contains(t, text, "Description: An example page")
	assert.Contains(t, text, "illustrative examples")
	assert.Contains(t, text, "Footer text")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "<h1>")
}

func TestExtract_Selector(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_extract", `{"selector":"#main"}`).Content[0].Text
	assert.Contains(t, text, "illustrative examples")
	assert.NotContains(t, text, "Footer text")

	result := f.run(t, "browserbase_extract", `{"selector":"#nope"}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "no element matches selector")

	result = f.run(t, "browserbase_extract", `{"selector":"div > p"}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "unsupported selector")
}

func TestExtract_Instruction(t *testing.T) {
	model := &fakeLLM{reply: "  The heading is Example Domain.  "}
	f := newFixture(t, Options{LLM: model})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.mustRun(t, "browserbase_extract", `{"instruction":"find the heading"}`)
	assert.Equal(t, "The heading is Example Domain.", result.Content[0].Text)
	assert.Contains(t, model.prompt(), "Instruction: find the heading")
	assert.Contains(t, model.prompt(), "illustrative examples")
}

func TestExtract_InstructionWithoutModel(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_extract", `{"instruction":"find the heading"}`).Content[0].Text
	assert.Contains(t, text, "No language model is configured")
	assert.Contains(t, text, "illustrative examples")
}

func TestObserve(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_observe", `{}`).Content[0].Text
	assert.Contains(t, text, "Interactive elements: 3")
	assert.Contains(t, text, `link "More information..." [ref=e2]`)
	assert.NotContains(t, text, "heading")
}

func TestObserve_Instruction(t *testing.T) {
	model := &fakeLLM{reply: `textbox "Search" [ref=e3]` + "\nbutton \"Invented\" [ref=e42]"}
	f := newFixture(t, Options{LLM: model})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_observe", `{"instruction":"the search box"}`).Content[0].Text
	assert.Contains(t, text, "Interactive elements: 1")
	assert.Contains(t, text, "[ref=e3]")
	assert.NotContains(t, text, "e42")
}

func TestSearch(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	text := f.mustRun(t, "browserbase_search", `{"pattern":"ILLUSTRATIVE"}`).Content[0].Text
	assert.Contains(t, text, "Found 1 matches")

	text = f.mustRun(t, "browserbase_search", `{"pattern":"ILLUSTRATIVE","caseSensitive":true}`).Content[0].Text
	assert.Contains(t, text, "No matches found")
}

func TestWait_Capped(t *testing.T) {
	f := newFixture(t, Options{MaxWait: 10 * time.Millisecond})
	f.mustRun(t, "browserbase_session_create", `{}`)

	start := time.Now()
	result := f.mustRun(t, "browserbase_wait", `{"time":60}`)
	assert.Contains(t, result.Text(), "Waited 10ms")
	assert.Less(t, time.Since(start), 5*time.Second)

	result = f.mustRun(t, "browserbase_wait", `{"time":1e300}`)
	assert.Contains(t, result.Text(), "Waited 10ms")

	result = f.run(t, "browserbase_wait", `{"time":-1}`)
	assert.True(t, result.IsError)
}

func TestResize(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	f.mustRun(t, "browserbase_resize", `{"width":1024,"height":768}`)
	assert.Equal(t, 1024, f.page(t).Width)
	assert.Equal(t, 768, f.page(t).Height)
}

func TestSnapshotTool(t *testing.T) {
	f := newFixture(t, Options{})
	f.mustRun(t, "browserbase_session_create", `{}`)

	result := f.mustRun(t, "browserbase_snapshot", `{}`)
	assert.True(t, strings.HasPrefix(result.Text(), "Success"))
	assert.Contains(t, result.Text(), `textbox "Search" [ref=e3]`)
}

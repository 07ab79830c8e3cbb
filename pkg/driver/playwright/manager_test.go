package playwright

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserbase-mcp/pkg/driver"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

func TestManager_Endpoint(t *testing.T) {
	m := NewManager(Options{
		CDPEndpoint: "wss://grid.example.com/connect?sessionId={session_id}&apiKey={api_key}&proxies={proxies}",
		APIKey:      "secret",
	})

	assert.Equal(t,
		"wss://grid.example.com/connect?sessionId=abc&apiKey=secret&proxies=true",
		m.Endpoint("abc", true))
}

func TestManager_AttachRequiresEndpoint(t *testing.T) {
	m := NewManager(Options{Logger: logging.Discard("playwright")})
	_, err := m.Attach("abc")
	assert.ErrorIs(t, err, driver.ErrAttachUnsupported)
}

func TestManager_CreateRequiresInitialize(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.Create(driver.SessionOptions{ID: "abc"})
	assert.Error(t, err)
	assert.NoError(t, m.Shutdown())
}

func TestNewManager_DefaultTimeout(t *testing.T) {
	assert.Equal(t, float64(DefaultTimeout), NewManager(Options{}).opts.Timeout)
}

func TestParseTree(t *testing.T) {
	root, err := parseTree(`{"role":"document","name":"Example","children":[` +
		`{"role":"heading","name":"Example Domain","level":1},` +
		`{"role":"link","name":"More information...","ref":"e2"},` +
		`{"role":"iframe","name":"ads","ref":"e3","frame":true},` +
		`{"role":"checkbox","name":"Agree","ref":"e4","checked":false}]}`)
	require.NoError(t, err)

	assert.Equal(t, "document", root.Role)
	require.Len(t, root.Children, 4)
	assert.Equal(t, 1, root.Children[0].Level)
	assert.Equal(t, "e2", root.Children[1].Ref)
	assert.True(t, root.Children[2].Frame)
	require.NotNil(t, root.Children[3].Checked)
	assert.False(t, *root.Children[3].Checked)
}

func TestParseTree_Errors(t *testing.T) {
	_, err := parseTree(42)
	assert.Error(t, err)

	_, err = parseTree("{")
	assert.Error(t, err)
}

func TestRefSelector(t *testing.T) {
	assert.Equal(t, `[data-bb-ref="e12"]`, refSelector("e12"))
}

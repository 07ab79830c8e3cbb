package urlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Check(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		denied  []string
		url     string
		wantErr bool
	}{
		{name: "no policy", url: "https://example.com/path"},
		{name: "about blank", url: "about:blank"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true},
		{name: "missing host", url: "https://", wantErr: true},
		{name: "allowed host", allowed: []string{"example.com"}, url: "https://example.com/"},
		{name: "host not allowed", allowed: []string{"example.com"}, url: "https://other.com/", wantErr: true},
		{name: "single level wildcard", allowed: []string{"*.example.com"}, url: "https://www.example.com/"},
		{name: "single level wildcard is one level", allowed: []string{"*.example.com"}, url: "https://a.b.example.com/", wantErr: true},
		{name: "super wildcard", allowed: []string{"**.example.com"}, url: "https://a.b.example.com/"},
		{name: "host match is case insensitive", allowed: []string{"Example.com"}, url: "https://EXAMPLE.com/"},
		{name: "denied wins", allowed: []string{"**.example.com"}, denied: []string{"admin.example.com"}, url: "https://admin.example.com/", wantErr: true},
		{name: "full url pattern", denied: []string{"https://example.com/private/*"}, url: "https://example.com/private/x", wantErr: true},
		{name: "full url pattern no match", denied: []string{"https://example.com/private/*"}, url: "https://example.com/public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.allowed, tt.denied)
			require.NoError(t, err)
			err = g.Check(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrURLDenied)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"[unclosed"}, nil)
	assert.Error(t, err)
	_, err = New(nil, []string{"[unclosed"})
	assert.Error(t, err)
}

func TestNilGuardChecksSchemeOnly(t *testing.T) {
	var g *Guard
	assert.NoError(t, g.Check("https://example.com"))
	assert.Error(t, g.Check("ftp://example.com"))
}

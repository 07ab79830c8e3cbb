// Package urlguard decides which URLs the browser may navigate to.
//
// Patterns are globs. A pattern containing "://" is matched against the full
// URL; any other pattern is matched against the host name, with "." as the
// separator so "*.example.com" matches one subdomain level and
// "**.example.com" matches any depth. Denied patterns take precedence; an
// empty allow list allows every host not denied.
package urlguard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// ErrURLDenied is returned for URLs the policy rejects.
var ErrURLDenied = errors.New("navigation to this URL is not allowed")

type pattern struct {
	source  string
	fullURL bool
	g       glob.Glob
}

func (p pattern) match(u *url.URL, raw string) bool {
	if p.fullURL {
		return p.g.Match(raw)
	}
	return p.g.Match(strings.ToLower(u.Hostname()))
}

// Guard applies an allow/deny policy to navigation targets.
type Guard struct {
	allowed []pattern
	denied  []pattern
}

// New compiles the allow and deny lists.
func New(allowed, denied []string) (*Guard, error) {
	g := &Guard{}
	for _, p := range allowed {
		compiled, err := compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", p, err)
		}
		g.allowed = append(g.allowed, compiled)
	}
	for _, p := range denied {
		compiled, err := compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", p, err)
		}
		g.denied = append(g.denied, compiled)
	}
	return g, nil
}

func compile(p string) (pattern, error) {
	if strings.Contains(p, "://") {
		g, err := glob.Compile(p)
		return pattern{source: p, fullURL: true, g: g}, err
	}
	g, err := glob.Compile(strings.ToLower(p), '.')
	return pattern{source: p, g: g}, err
}

// Check returns nil when raw may be navigated to.
func (g *Guard) Check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrURLDenied, err)
	}
	if raw == "about:blank" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrURLDenied, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrURLDenied)
	}
	if g == nil {
		return nil
	}

	for _, p := range g.denied {
		if p.match(u, raw) {
			return fmt.Errorf("%w: matches denied pattern %s", ErrURLDenied, p.source)
		}
	}
	if len(g.allowed) == 0 {
		return nil
	}
	for _, p := range g.allowed {
		if p.match(u, raw) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not in the allowed list", ErrURLDenied, u.Hostname())
}

package execution

import (
	"errors"
	"fmt"
	"strings"
)

// ResourceScheme is the URI scheme of every resource the server produces.
const ResourceScheme = "browserbase"

// Resource kinds.
const (
	ResourceScreenshot = "screenshot"
)

var (
	// ErrResourceNotFound is returned when reading a resource that does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrMalformedURI is returned for URIs not of the form browserbase://<kind>/<name>.
	ErrMalformedURI = errors.New("malformed resource URI")
)

// Resource is a named binary artifact, such as a screenshot.
type Resource struct {
	Name   string `json:"-"`
	Format string `json:"format"`
	Data   []byte `json:"bytes"`
	URI    string `json:"uri"`
}

// ResourceURI returns the URI of the resource name of the given kind.
func ResourceURI(kind, name string) string {
	return fmt.Sprintf("%s://%s/%s", ResourceScheme, kind, name)
}

// ParseResourceURI splits uri into kind and name.
func ParseResourceURI(uri string) (kind, name string, err error) {
	rest, ok := strings.CutPrefix(uri, ResourceScheme+"://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedURI, uri)
	}
	kind, name, ok = strings.Cut(rest, "/")
	if !ok || kind == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedURI, uri)
	}
	return kind, name, nil
}

// AddResource stores data under name, replacing any resource with the same
// name, and returns it.
func (c *Context) AddResource(kind, name, format string, data []byte) Resource {
	r := Resource{Name: name, Format: format, Data: data, URI: ResourceURI(kind, name)}
	c.RestoreResource(r)
	return r
}

// RestoreResource stores r as is. It is used when rehydrating cached state.
func (c *Context) RestoreResource(r Resource) {
	if _, exists := c.resources[r.Name]; !exists {
		c.resourceOrder = append(c.resourceOrder, r.Name)
	}
	c.resources[r.Name] = r
}

// ListResources returns the stored resources in insertion order.
func (c *Context) ListResources() []Resource {
	list := make([]Resource, 0, len(c.resourceOrder))
	for _, name := range c.resourceOrder {
		list = append(list, c.resources[name])
	}
	return list
}

// ReadResource returns the resource addressed by uri.
func (c *Context) ReadResource(uri string) (Resource, error) {
	_, name, err := ParseResourceURI(uri)
	if err != nil {
		return Resource{}, err
	}
	r, ok := c.resources[name]
	if !ok || r.URI != uri {
		return Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
	}
	return r, nil
}

// Package mcpserver exposes a continuity.Dispatcher as a Model Context
// Protocol server.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/entrhq/browserbase-mcp/pkg/continuity"
	"github.com/entrhq/browserbase-mcp/pkg/execution"
	"github.com/entrhq/browserbase-mcp/pkg/logging"
)

// TenantHeader carries the tenant of an HTTP request. Requests without it
// belong to the configured project.
const TenantHeader = "X-Browserbase-Project-Id"

// Options configures a Server.
type Options struct {
	Name    string
	Version string

	// ProjectID is the tenant used when a request names none.
	ProjectID string

	Logger *logging.Logger
}

// Server registers the dispatcher's tools and resources on an MCP server.
type Server struct {
	srv        *mcp.Server
	dispatcher *continuity.Dispatcher
	projectID  string
	logger     *logging.Logger
}

// New creates a Server for d.
func New(d *continuity.Dispatcher, opts Options) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.Name == "" {
		opts.Name = "browserbase-mcp"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard("mcp")
	}

	s := &Server{
		srv:        mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		dispatcher: d,
		projectID:  opts.ProjectID,
		logger:     opts.Logger,
	}
	for _, tool := range d.Tools().List() {
		if err := s.addTool(tool); err != nil {
			return nil, err
		}
	}
	s.srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "screenshot",
		Description: "Screenshots taken with browserbase_take_screenshot",
		URITemplate: execution.ResourceURI(execution.ResourceScreenshot, "{name}"),
		MIMEType:    "image/png",
	}, s.readResource)
	return s, nil
}

func (s *Server) addTool(tool *execution.CompiledTool) error {
	var schema map[string]any
	if err := json.Unmarshal(tool.InputSchema(), &schema); err != nil {
		return fmt.Errorf("tool %s: decode schema: %w", tool.Name(), err)
	}

	name := tool.Name()
	s.srv.AddTool(&mcp.Tool{
		Name:        name,
		Description: tool.Description(),
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenant := s.tenant(req.Extra)
		s.logger.Debugf("call %s for %s", name, tenant)
		result, err := s.dispatcher.Call(ctx, tenant, name, req.Params.Arguments)
		if err != nil {
			s.logger.Errorf("call %s for %s failed: %v", name, tenant, err)
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return convertResult(result), nil
	})
	return nil
}

func (s *Server) readResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	r, err := s.dispatcher.ReadResource(ctx, s.tenant(req.Extra), uri)
	if err != nil {
		if errors.Is(err, execution.ErrResourceNotFound) || errors.Is(err, execution.ErrMalformedURI) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: r.URI, MIMEType: r.Format, Blob: r.Data}},
	}, nil
}

// tenant returns the tenant named by the request headers, if any.
func (s *Server) tenant(extra *mcp.RequestExtra) string {
	if extra != nil && extra.Header != nil {
		if t := extra.Header.Get(TenantHeader); t != "" {
			return t
		}
	}
	return s.projectID
}

func convertResult(r *execution.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: r.IsError}
	for _, c := range r.Content {
		switch c.Type {
		case execution.ContentImage:
			out.Content = append(out.Content, &mcp.ImageContent{Data: c.Data, MIMEType: c.MimeType})
		default:
			out.Content = append(out.Content, &mcp.TextContent{Text: c.Text})
		}
	}
	return out
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.srv
}

// Run serves a single client over t until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.srv.Run(ctx, t)
}

// Handler returns a streamable HTTP handler serving every client from
// this server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.srv
	}, nil)
}

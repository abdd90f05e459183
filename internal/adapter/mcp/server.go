// Package mcp exposes painradar as a Model Context Protocol server so that
// agents can run aggregations as a tool.
package mcp

import (
	"context"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/port/ledger"
	"github.com/Strob0t/painradar/internal/resilience"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// QueryRunner runs and lists aggregations.
type QueryRunner interface {
	Run(ctx context.Context, keyword string, m mode.Mode) (*aggregate.Query, error)
	List(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// PoolReporter reports credential pool health.
type PoolReporter interface {
	Stats() resilience.PoolStats
}

// ServerConfig names the server in the MCP handshake.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// ServerDeps holds the services the tools call. Nil deps make the
// corresponding tools return an error result.
type ServerDeps struct {
	Queries QueryRunner
	Pool    PoolReporter
}

// Server wraps an mcp-go server with painradar tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates a Server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Handler returns the stateless streamable HTTP handler serving
// EndpointPath, guarded by RequireAPIKey.
func (s *Server) Handler() http.Handler {
	h := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return RequireAPIKey(s.cfg.APIKey, h)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}

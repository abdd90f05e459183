package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/painradar/internal/domain/mode"
)

const modesURI = "painradar://modes"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			modesURI,
			"Analysis modes",
			mcplib.WithResourceDescription("Summary modes accepted by aggregate_pain_points"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleModesResource,
	)
}

func (s *Server) handleModesResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(mode.Presets())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/painradar/internal/domain/mode"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.aggregateTool(),
		s.poolStatusTool(),
		s.recentQueriesTool(),
	)
}

func modeNames() []string {
	all := mode.All()
	out := make([]string, len(all))
	for i, m := range all {
		out[i] = string(m)
	}
	return out
}

func (s *Server) aggregateTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("aggregate_pain_points",
		mcplib.WithDescription("Collect posts, questions and listings about a keyword from all configured sources and summarize them"),
		mcplib.WithString("keyword",
			mcplib.Required(),
			mcplib.Description("Product, market or topic to research"),
		),
		mcplib.WithString("mode",
			mcplib.Description("Summary focus; defaults to pain_points"),
			mcplib.Enum(modeNames()...),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleAggregate}
}

func (s *Server) poolStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("credential_pool_status",
		mcplib.WithDescription("Report how many summarizer credentials are available or cooling down"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handlePoolStatus}
}

func (s *Server) recentQueriesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_recent_queries",
		mcplib.WithDescription("List recently recorded aggregations, newest first"),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of entries (default 20)")),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRecentQueries}
}

func (s *Server) handleAggregate(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Queries == nil {
		return mcplib.NewToolResultError("query service not configured"), nil
	}
	args := req.GetArguments()
	keyword, _ := args["keyword"].(string)
	if strings.TrimSpace(keyword) == "" {
		return mcplib.NewToolResultError("keyword is required"), nil
	}
	modeArg, _ := args["mode"].(string)
	m, err := mode.Parse(modeArg)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	q, err := s.deps.Queries.Run(ctx, keyword, m)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("aggregation failed", err), nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal query", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handlePoolStatus(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Pool == nil {
		return mcplib.NewToolResultError("credential pool not configured"), nil
	}
	data, err := json.Marshal(s.deps.Pool.Stats())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal pool stats", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleRecentQueries(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Queries == nil {
		return mcplib.NewToolResultError("query service not configured"), nil
	}
	limit := 0
	if v, ok := req.GetArguments()["limit"].(float64); ok {
		limit = int(v)
	}
	entries, err := s.deps.Queries.List(ctx, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list queries", err), nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal queries", err), nil
	}
	return toolResultJSON(string(data)), nil
}

package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	prmcp "github.com/Strob0t/painradar/internal/adapter/mcp"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/port/ledger"
	"github.com/Strob0t/painradar/internal/resilience"
)

// --- Mocks ---

type mockQueries struct {
	gotKeyword string
	gotMode    mode.Mode
	err        error
}

func (m *mockQueries) Run(_ context.Context, keyword string, md mode.Mode) (*aggregate.Query, error) {
	m.gotKeyword, m.gotMode = keyword, md
	if m.err != nil {
		return nil, m.err
	}
	q := aggregate.NewQuery(keyword, string(md), []string{"forum"})
	q.Summary = "1. Setup is confusing"
	return q, nil
}

func (m *mockQueries) List(_ context.Context, limit int) ([]ledger.Entry, error) {
	return []ledger.Entry{{ID: "q1", Keyword: "crm", Mode: "pain_points"}}, nil
}

type mockPool struct{}

func (mockPool) Stats() resilience.PoolStats {
	return resilience.PoolStats{Total: 3, Available: 2, CoolingDown: 1}
}

func newServer(deps prmcp.ServerDeps) *prmcp.Server {
	return prmcp.NewServer(prmcp.ServerConfig{Name: "painradar-test", Version: "0.1.0"}, deps)
}

func callTool(t *testing.T, s *prmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	text, ok := r.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

// --- Tests ---

func TestToolRegistration(t *testing.T) {
	tools := newServer(prmcp.ServerDeps{}).MCPServer().ListTools()
	for _, name := range []string{"aggregate_pain_points", "credential_pool_status", "list_recent_queries"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q", name)
		}
	}
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
}

func TestHandleAggregate(t *testing.T) {
	q := &mockQueries{}
	s := newServer(prmcp.ServerDeps{Queries: q})

	result := callTool(t, s, "aggregate_pain_points", map[string]any{"keyword": "crm", "mode": "competitors"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	if q.gotKeyword != "crm" || q.gotMode != mode.Competitors {
		t.Fatalf("Run called with %q %q", q.gotKeyword, q.gotMode)
	}

	var got aggregate.Query
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Summary != "1. Setup is confusing" {
		t.Fatalf("summary = %q", got.Summary)
	}
}

func TestHandleAggregateErrors(t *testing.T) {
	tests := []struct {
		name string
		deps prmcp.ServerDeps
		args map[string]any
	}{
		{"missing keyword", prmcp.ServerDeps{Queries: &mockQueries{}}, map[string]any{}},
		{"bad mode", prmcp.ServerDeps{Queries: &mockQueries{}}, map[string]any{"keyword": "crm", "mode": "sonnet"}},
		{"run fails", prmcp.ServerDeps{Queries: &mockQueries{err: errors.New("no sources")}}, map[string]any{"keyword": "crm"}},
		{"nil deps", prmcp.ServerDeps{}, map[string]any{"keyword": "crm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, newServer(tt.deps), "aggregate_pain_points", tt.args); !r.IsError {
				t.Fatal("expected error result")
			}
		})
	}
}

func TestHandlePoolStatus(t *testing.T) {
	result := callTool(t, newServer(prmcp.ServerDeps{Pool: mockPool{}}), "credential_pool_status", nil)
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var stats resilience.PoolStats
	if err := json.Unmarshal([]byte(resultText(t, result)), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.CoolingDown != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStreamableHTTPRoundTrip(t *testing.T) {
	s := newServer(prmcp.ServerDeps{Queries: &mockQueries{}, Pool: mockPool{}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client, err := mcpclient.NewStreamableHttpClient(srv.URL + prmcp.EndpointPath)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close() //nolint:errcheck // best-effort cleanup
	if err := client.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{Name: "test", Version: "1.0.0"}
	initResult, err := client.Initialize(ctx, initReq)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if initResult.ServerInfo.Name != "painradar-test" {
		t.Fatalf("server name = %q", initResult.ServerInfo.Name)
	}

	tools, err := client.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools.Tools) != 3 {
		t.Fatalf("expected 3 tools over HTTP, got %d", len(tools.Tools))
	}
}

func TestRequireAPIKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := prmcp.RequireAPIKey("secret", next)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
		message string
	}{
		{"missing", nil, http.StatusUnauthorized, "api key required"},
		{"wrong bearer", map[string]string{"Authorization": "Bearer wrong"}, http.StatusUnauthorized, "invalid api key"},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK, ""},
		{"x-api-key", map[string]string{"X-API-Key": "secret"}, http.StatusOK, ""},
		{"bare authorization", map[string]string{"Authorization": "secret"}, http.StatusUnauthorized, "api key required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, prmcp.EndpointPath, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d", rec.Code, tt.want)
			}
			if tt.message == "" {
				return
			}
			var body struct {
				Error struct {
					Code    int    `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message != tt.message || body.Error.Code != -32001 {
				t.Errorf("error = %+v", body.Error)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate")
			}
		})
	}
}

func TestRequireAPIKeyDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	prmcp.RequireAPIKey("", next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, prmcp.EndpointPath, http.NoBody))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("disabled auth should pass through, got %d", rec.Code)
	}
}

package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// unauthorizedCode is the JSON-RPC server error code returned to clients
// without a valid key.
const unauthorizedCode = -32001

// RequireAPIKey guards the MCP endpoint, whose aggregate tool spends
// summarizer credentials. The key is read from "Authorization: Bearer <key>"
// or the X-API-Key header. Rejections are JSON-RPC errors so MCP clients can
// surface them. An empty apiKey disables the check.
func RequireAPIKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-API-Key")
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			got = strings.TrimSpace(bearer)
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeUnauthorized(w, got == "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, missing bool) {
	msg := "invalid api key"
	if missing {
		msg = "api key required"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="painradar-mcp"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": unauthorizedCode, "message": msg},
	})
}

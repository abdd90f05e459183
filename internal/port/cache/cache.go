// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Cache is the port interface for key-value caching.
// Implementations must be safe for concurrent use; Set is last-write-wins.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key derives a deterministic cache key from an operation name, a keyword
// and operation parameters. The key is stable across process restarts:
// encoding/json writes map keys in sorted order.
func Key(op, keyword string, params map[string]string) string {
	payload := struct {
		K string            `json:"k"`
		P map[string]string `json:"p,omitempty"`
	}{K: NormalizeKeyword(keyword), P: params}

	// Marshal of a string and a string map cannot fail.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return op + ":" + hex.EncodeToString(sum[:])
}

// NormalizeKeyword lower-cases the keyword and collapses inner whitespace so
// that "  CRM  tools" and "crm tools" share cache entries.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

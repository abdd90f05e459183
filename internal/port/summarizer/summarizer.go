// Package summarizer defines the port to the text summarization backend.
package summarizer

import "context"

// Request is one completion request. System carries the mode instructions,
// Prompt the rendered corpus.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend produces a completion using the given API secret. Errors that
// carry an HTTP status should implement StatusCode() int so they can be
// classified for credential rotation.
type Backend interface {
	Complete(ctx context.Context, secret string, req Request) (string, error)
}

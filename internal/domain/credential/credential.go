// Package credential defines summarizer API credentials, their rotation
// state and the classification of failed calls.
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// State is the rotation state of a credential.
type State string

const (
	StateAvailable   State = "available"
	StateCoolingDown State = "cooling_down"
)

// FailureKind classifies a failed call for rotation purposes.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureUnauthenticated FailureKind = "unauthenticated"
	FailureRateLimited     FailureKind = "rate_limited"
	FailureTransient       FailureKind = "transient"
	FailureOther           FailureKind = "other"
)

// CoolsDown reports whether a failure of this kind puts the credential in
// cooldown.
func (k FailureKind) CoolsDown() bool {
	return k == FailureRateLimited || k == FailureTransient
}

// Credential is one summarizer API key plus its rotation bookkeeping.
type Credential struct {
	ID            string      `json:"id"`
	Secret        string      `json:"-"`
	State         State       `json:"state"`
	CooldownUntil time.Time   `json:"cooldown_until,omitzero"`
	LastFailure   FailureKind `json:"last_failure,omitempty"`
	Failures      int         `json:"failures"`
	Successes     int         `json:"successes"`
}

// Available reports whether the credential can be selected at now. A
// cooling-down credential becomes available once its cooldown has elapsed.
func (c *Credential) Available(now time.Time) bool {
	return c.State == StateAvailable || !now.Before(c.CooldownUntil)
}

// MakeID derives a stable, non-secret identifier for the n-th credential.
func MakeID(n int, secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("key-%d-%s", n, hex.EncodeToString(sum[:4]))
}

// Error is a classified failure of a single attempt made with a credential.
type Error struct {
	CredentialID string
	Kind         FailureKind
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credential %s: %s: %v", e.CredentialID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// statusCoder is implemented by backend errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Classify maps a backend error to a FailureKind. Errors carrying an HTTP
// status are classified by code; otherwise network-level failures are
// transient and everything else is other.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return ClassifyStatus(sc.StatusCode())
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &netErr):
		return FailureTransient
	}
	return FailureOther
}

// ClassifyStatus maps an HTTP status code to a FailureKind.
func ClassifyStatus(code int) FailureKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return FailureUnauthenticated
	case code == http.StatusTooManyRequests:
		return FailureRateLimited
	case code >= 500:
		return FailureTransient
	default:
		return FailureOther
	}
}

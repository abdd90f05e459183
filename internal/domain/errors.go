// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid caller input. Wrap it with a message:
// fmt.Errorf("%w: keyword is required", domain.ErrValidation).
var ErrValidation = errors.New("validation error")

// ErrNoSources indicates that no source adapter is configured or enabled.
// It is one of the few conditions that fail an aggregation outright.
var ErrNoSources = errors.New("no sources configured")

// ErrNoCredentials indicates the summarizer credential pool would be empty.
var ErrNoCredentials = errors.New("no summarizer credentials configured")

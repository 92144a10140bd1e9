// Package llm provides the language model collaborator used by agents.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by clients that cannot reach a model
var ErrUnavailable = errors.New("llm unavailable")

// Request is a single completion call
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Client completes a prompt into free text. Calls block until the full
// response is available.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is a Client that always fails. Agents fall back to their
// default artifacts when it is configured.
type Unavailable struct{}

// Complete returns ErrUnavailable
func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}

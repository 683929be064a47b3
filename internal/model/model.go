// Package model provides the text-completion capability each generation
// stage calls once. Backends return raw completion text; interpreting it is
// the caller's job.
package model

import (
	"context"
	"errors"
)

// Model turns a prompt into completion text, fallibly.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts an ordinary function to the Model interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var (
	// ErrEmptyCompletion is returned when a backend answers with no content.
	ErrEmptyCompletion = errors.New("model: empty completion")

	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("model: unknown provider")
)

// StatusError is implemented by backend errors that carry an HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

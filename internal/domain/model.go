package domain

import (
	"context"
	"fmt"
)

// Model is the minimal capability the responder needs from a language model:
// one system instruction, one user turn, one text answer.
type Model interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ModelError reports a failed completion request.
type ModelError struct {
	Op         string // request | decode | empty
	StatusCode int    // 0 when no HTTP response was received
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

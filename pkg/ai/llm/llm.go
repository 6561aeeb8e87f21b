// Package llm defines the reply-generation provider interface.
package llm

import (
	"context"

	"github.com/vocora/vocora/pkg/ai"
)

// LLM-specific error variables, aliased from the shared taxonomy.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Request contains parameters for one completion request.
type Request struct {
	System      string  // system instruction
	Prompt      string  // user-facing prompt, already assembled and bounded
	MaxTokens   int
	Temperature float32
}

// Provider is the main interface for generation back-ends.
type Provider interface {
	// Complete generates one reply for the request. Implementations must
	// honor ctx cancellation and return ctx.Err() without retrying.
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the back-end in logs.
	Name() string
}

// Package tts defines the speech synthesis provider interface.
// Synthesis is chunk-oriented: the caller splits reply text into bounded
// chunks and requests audio for each chunk as one round trip.
package tts

import (
	"context"

	"github.com/vocora/vocora/pkg/ai"
)

// TTS-specific error variables, aliased from the shared taxonomy.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Request contains parameters for synthesizing one chunk of text.
type Request struct {
	Text  string
	Voice string // provider voice id, e.g. "en-US-terrell"
}

// Capabilities describes what a synthesis provider supports.
type Capabilities struct {
	Voices      []string
	SampleRates []int
	Format      string // encoded payload format, e.g. "mp3"
}

// Provider is the main interface for synthesis back-ends.
type Provider interface {
	// Synthesize converts one chunk of text into an encoded audio payload.
	// Implementations must honor ctx cancellation.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}

// Package stt defines the streaming speech-to-text provider interface.
// A provider owns one live recognition connection per stream, accepts raw
// PCM audio frames, and emits normalized interim/final transcript events.
package stt

import (
	"context"
	"time"

	"github.com/vocora/vocora/pkg/ai"
)

// STT-specific error variables, aliased from the shared taxonomy.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// StreamConfig contains configuration for a recognition stream.
type StreamConfig struct {
	SampleRate  int           // samples per second, e.g. 16000
	NumChannels int           // 1 for mono microphone capture
	Language    string        // BCP-47 language tag
	Endpointing time.Duration // provider-side silence window before a final
	Interim     bool          // request interim (partial) results
}

// EventType represents the type of recognition event.
type EventType int

const (
	// EventInterim is a partial transcript that may still change.
	EventInterim EventType = iota
	// EventFinal is a finalized transcript segment. Multiple final segments
	// can occur within one user turn; SpeechFinal marks end-of-speech.
	EventFinal
	// EventError is a recoverable stream failure. The session stays usable.
	EventError
)

// Event is one normalized recognition result or stream error.
type Event struct {
	Type        EventType
	Text        string
	Confidence  float64
	SpeechFinal bool  // provider detected end-of-speech (definitive final)
	Err         error // set only for EventError
}

// Capabilities describes what a recognition provider supports.
type Capabilities struct {
	Streaming      bool
	InterimResults bool
	SampleRates    []int
	Languages      []string
}

// Provider is the main interface for speech-to-text back-ends.
type Provider interface {
	// NewStream opens a live recognition connection.
	NewStream(ctx context.Context, cfg StreamConfig) (Stream, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}

// Stream is one active recognition connection.
type Stream interface {
	// Push forwards one raw audio frame to the provider.
	Push(frame []byte) error

	// Events returns the channel of recognition events. The channel is
	// closed when the stream ends.
	Events() <-chan Event

	// Close tears down the connection. Closing an already-closed stream
	// is a no-op.
	Close() error
}

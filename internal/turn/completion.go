// Package turn coordinates one conversational exchange at a time: it
// accumulates streaming transcripts, decides when the user has finished
// speaking, drives reply generation and synthesis, and handles barge-in.
package turn

import (
	"strings"
	"time"

	"github.com/vocora/vocora/pkg/ai/stt"
)

// CompletionPolicy decides when accumulated speech forms a complete
// utterance and how long to wait before committing it. The thresholds
// are heuristics tuned against live transcription output.
type CompletionPolicy struct {
	// MinLength is the transcript length above which an utterance is
	// considered complete even without an endpoint signal.
	MinLength int
	// HighConfidence marks an utterance complete regardless of length.
	HighConfidence float64
	// LowConfidence combined with a fragment shorter than MinFragmentLen
	// marks a transcript as noise to discard.
	LowConfidence  float64
	MinFragmentLen int
	// BargeInMinChars is the minimum interim length that counts as real
	// speech while the assistant is generating or speaking.
	BargeInMinChars int

	// DebounceFast applies when the recognizer signalled an endpoint;
	// DebounceSlow applies when only the heuristic fired.
	DebounceFast time.Duration
	DebounceSlow time.Duration
}

// DefaultCompletionPolicy returns the standard thresholds.
func DefaultCompletionPolicy() CompletionPolicy {
	return CompletionPolicy{
		MinLength:       8,
		HighConfidence:  0.9,
		LowConfidence:   0.5,
		MinFragmentLen:  3,
		BargeInMinChars: 3,
		DebounceFast:    50 * time.Millisecond,
		DebounceSlow:    200 * time.Millisecond,
	}
}

// Ready reports whether a final transcript event completes the utterance.
func (p CompletionPolicy) Ready(ev stt.Event) bool {
	text := strings.TrimSpace(ev.Text)
	if ev.SpeechFinal {
		return true
	}
	if len(text) > p.MinLength {
		return true
	}
	if strings.Contains(text, "?") {
		return true
	}
	return ev.Confidence > p.HighConfidence
}

// Debounce returns how long to hold a completed utterance open for
// further speech before committing it.
func (p CompletionPolicy) Debounce(speechFinal bool) time.Duration {
	if speechFinal {
		return p.DebounceFast
	}
	return p.DebounceSlow
}

// Discard reports whether a transcript is a low-confidence fragment that
// should never reach the conversation.
func (p CompletionPolicy) Discard(text string, confidence float64) bool {
	return confidence < p.LowConfidence && len(strings.TrimSpace(text)) < p.MinFragmentLen
}

// BargeIn reports whether an interim transcript counts as the user
// speaking over the assistant.
func (p CompletionPolicy) BargeIn(text string) bool {
	return len(strings.TrimSpace(text)) > p.BargeInMinChars
}

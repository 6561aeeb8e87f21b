package turn

import (
	"testing"
	"time"

	"github.com/vocora/vocora/pkg/ai/stt"
)

func TestCompletionReady(t *testing.T) {
	p := DefaultCompletionPolicy()

	cases := []struct {
		name string
		ev   stt.Event
		want bool
	}{
		{"speech final always ready", stt.Event{Text: "ok", SpeechFinal: true, Confidence: 0.4}, true},
		{"long enough", stt.Event{Text: "tell me more", Confidence: 0.6}, true},
		{"question mark", stt.Event{Text: "why?", Confidence: 0.6}, true},
		{"high confidence", stt.Event{Text: "stop", Confidence: 0.95}, true},
		{"short low confidence fragment", stt.Event{Text: "so um", Confidence: 0.6}, false},
		{"exactly at length threshold", stt.Event{Text: "12345678", Confidence: 0.6}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Ready(tc.ev); got != tc.want {
				t.Errorf("Ready(%+v) = %v, want %v", tc.ev, got, tc.want)
			}
		})
	}
}

func TestCompletionDebounce(t *testing.T) {
	p := DefaultCompletionPolicy()
	if got := p.Debounce(true); got != 50*time.Millisecond {
		t.Errorf("Debounce(true) = %v", got)
	}
	if got := p.Debounce(false); got != 200*time.Millisecond {
		t.Errorf("Debounce(false) = %v", got)
	}
}

func TestCompletionDiscard(t *testing.T) {
	p := DefaultCompletionPolicy()
	if !p.Discard("um", 0.2) {
		t.Error("low-confidence fragment should be discarded")
	}
	if p.Discard("um", 0.8) {
		t.Error("confident fragment should be kept")
	}
	if p.Discard("a longer utterance", 0.2) {
		t.Error("long low-confidence text should be kept")
	}
}

func TestBargeInThreshold(t *testing.T) {
	p := DefaultCompletionPolicy()
	if p.BargeIn("um") {
		t.Error("two characters should not trigger barge-in")
	}
	if !p.BargeIn("wait") {
		t.Error("four characters should trigger barge-in")
	}
}

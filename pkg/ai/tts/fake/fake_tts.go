// Package fake provides a scripted TTS implementation for testing.
package fake

import (
	"context"
	"sync"

	"github.com/vocora/vocora/pkg/ai/tts"
)

// FakeTTS is a fake synthesis back-end. Each Synthesize call returns a
// payload derived from the request text, so tests can match audio frames
// back to the chunk that produced them.
type FakeTTS struct {
	mu    sync.Mutex
	calls []tts.Request

	// Err, when set, is returned from every Synthesize call.
	Err error
	// HoldFn, when non-nil, is consulted per request. A non-nil returned
	// channel blocks the call until it is closed or ctx is cancelled.
	// Tests use it to force chunk resolution order.
	HoldFn func(req tts.Request) <-chan struct{}
}

// NewFakeTTS creates a new fake synthesis back-end.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Payload returns the audio payload Synthesize produces for text.
func Payload(text string) []byte {
	return []byte("audio:" + text)
}

// Synthesize returns a deterministic payload for the request text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	holdFn := f.HoldFn
	err := f.Err
	f.mu.Unlock()

	if holdFn != nil {
		if hold := holdFn(req); hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	return Payload(req.Text), nil
}

// Capabilities returns the fake provider's capabilities.
func (f *FakeTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Voices:      []string{"fake-voice-1", "fake-voice-2"},
		SampleRates: []int{24000},
		Format:      "mp3",
	}
}

// Calls returns the synthesis requests received so far.
func (f *FakeTTS) Calls() []tts.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.Request(nil), f.calls...)
}

// CallCount returns how many Synthesize calls were made.
func (f *FakeTTS) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Package fake provides a scripted STT implementation for testing.
package fake

import (
	"context"
	"sync"

	"github.com/vocora/vocora/pkg/ai/stt"
)

// FakeSTT is a fake recognition provider. Tests drive its streams by
// emitting scripted events.
type FakeSTT struct {
	mu      sync.Mutex
	streams []*FakeStream

	// Err, when set, is returned from NewStream.
	Err error
}

// NewFakeSTT creates a new fake recognition provider.
func NewFakeSTT() *FakeSTT {
	return &FakeSTT{}
}

// NewStream opens a scripted recognition stream.
func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s := &FakeStream{
		cfg:    cfg,
		events: make(chan stt.Event, 32),
	}
	f.streams = append(f.streams, s)
	return s, nil
}

// Capabilities returns the fake provider's capabilities.
func (f *FakeSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:      true,
		InterimResults: true,
		SampleRates:    []int{16000, 48000},
		Languages:      []string{"en-US", "en-IN"},
	}
}

// LastStream returns the most recently opened stream, or nil.
func (f *FakeSTT) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// FakeStream is one scripted recognition stream.
type FakeStream struct {
	cfg stt.StreamConfig

	mu     sync.Mutex
	events chan stt.Event
	pushed [][]byte
	closed bool
}

// Push records an audio frame.
func (s *FakeStream) Push(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrRecoverable
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	s.pushed = append(s.pushed, buf)
	return nil
}

// Events returns the scripted event channel.
func (s *FakeStream) Events() <-chan stt.Event {
	return s.events
}

// Close marks the stream closed and closes the event channel.
// Closing twice is a no-op.
func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// Closed reports whether Close has been called.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pushed returns the audio frames recorded so far.
func (s *FakeStream) Pushed() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.pushed...)
}

// EmitInterim scripts a partial transcript event.
func (s *FakeStream) EmitInterim(text string, confidence float64) {
	s.emit(stt.Event{Type: stt.EventInterim, Text: text, Confidence: confidence})
}

// EmitFinal scripts a finalized transcript segment.
func (s *FakeStream) EmitFinal(text string, confidence float64, speechFinal bool) {
	s.emit(stt.Event{Type: stt.EventFinal, Text: text, Confidence: confidence, SpeechFinal: speechFinal})
}

// EmitError scripts a recoverable stream error.
func (s *FakeStream) EmitError(err error) {
	s.emit(stt.Event{Type: stt.EventError, Err: err})
}

func (s *FakeStream) emit(ev stt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// Package fake provides a scripted LLM implementation for testing.
package fake

import (
	"context"
	"sync"

	"github.com/vocora/vocora/pkg/ai/llm"
)

// FakeLLM is a fake generation back-end that returns scripted responses
// in order and records every request it receives.
type FakeLLM struct {
	name      string
	responses []string

	mu    sync.Mutex
	calls []llm.Request
	next  int

	// Err, when set, is returned from every Complete call.
	Err error
	// Hold, when non-nil, blocks Complete until the channel is closed or
	// the context is cancelled. Tests use it to cancel mid-generation.
	Hold chan struct{}
}

// NewFakeLLM creates a fake back-end cycling through the given responses.
func NewFakeLLM(name string, responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"This is a fake response."}
	}
	return &FakeLLM{name: name, responses: responses}
}

// Complete returns the next scripted response.
func (f *FakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	resp := f.responses[f.next%len(f.responses)]
	f.next++
	hold := f.Hold
	err := f.Err
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Name identifies the fake back-end.
func (f *FakeLLM) Name() string { return f.name }

// Calls returns the requests received so far.
func (f *FakeLLM) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// CallCount returns how many Complete calls were made.
func (f *FakeLLM) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

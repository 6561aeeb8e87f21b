package synth

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/tts"
)

// lookahead is how many leading chunks are requested concurrently to
// minimize time-to-first-audio. Later chunks are requested sequentially.
const lookahead = 2

// DefaultPacingGap paces successive emissions so the client playback queue
// is not overwhelmed.
const DefaultPacingGap = 120 * time.Millisecond

// EmitFunc receives one synthesized chunk payload. Chunks arrive strictly
// in chunk order. Returning an error stops the stream.
type EmitFunc func(index int, audio []byte) error

// Streamer turns reply text into ordered synthesized audio chunks.
type Streamer struct {
	tts       tts.Provider
	clk       clock.Clock
	pacingGap time.Duration
	logger    *slog.Logger
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithClock injects the clock, used by tests to control pacing.
func WithClock(c clock.Clock) Option {
	return func(s *Streamer) { s.clk = c }
}

// WithPacingGap overrides the gap between emitted chunks.
func WithPacingGap(d time.Duration) Option {
	return func(s *Streamer) { s.pacingGap = d }
}

// WithLogger sets the streamer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) { s.logger = l }
}

// NewStreamer creates a Streamer backed by the given synthesis provider.
func NewStreamer(provider tts.Provider, opts ...Option) *Streamer {
	s := &Streamer{
		tts:       provider,
		clk:       clock.New(),
		pacingGap: DefaultPacingGap,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type chunkResult struct {
	audio []byte
	err   error
}

// Stream synthesizes text and emits audio chunks in order. The ctx is the
// turn's cancellation token: it is checked before every synthesis request
// and again before every emission, so audio resolved after cancellation is
// dropped rather than surfaced. Returns ctx.Err() when cancelled, nil when
// the stream finished. Per-chunk provider failures skip that chunk.
func (s *Streamer) Stream(ctx context.Context, text, voice string, emit EmitFunc) error {
	chunks := Chunks(text)
	if len(chunks) == 0 {
		return nil
	}
	s.logger.Debug("synthesis stream starting",
		slog.Int("chunks", len(chunks)),
		slog.String("voice", voice))

	// Pipeline the first chunks concurrently; their results are collected
	// by index so emission order matches chunk order regardless of which
	// request resolves first.
	head := lookahead
	if head > len(chunks) {
		head = len(chunks)
	}
	futures := make([]chan chunkResult, head)
	for i := 0; i < head; i++ {
		futures[i] = make(chan chunkResult, 1)
		go func(i int) {
			audio, err := s.tts.Synthesize(ctx, tts.Request{Text: chunks[i], Voice: voice})
			futures[i] <- chunkResult{audio: audio, err: err}
		}(i)
	}

	emitted := 0
	for i := 0; i < head; i++ {
		var res chunkResult
		select {
		case res = <-futures[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.err != nil {
			if ai.IsCancellation(res.err) {
				return res.err
			}
			s.logger.Warn("chunk synthesis failed", slog.Int("chunk", i), slog.String("error", res.err.Error()))
			continue
		}
		if err := s.deliver(ctx, emit, i, res.audio, &emitted); err != nil {
			return err
		}
	}

	for i := head; i < len(chunks); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		audio, err := s.tts.Synthesize(ctx, tts.Request{Text: chunks[i], Voice: voice})
		if err != nil {
			if ai.IsCancellation(err) {
				return err
			}
			s.logger.Warn("chunk synthesis failed", slog.Int("chunk", i), slog.String("error", err.Error()))
			continue
		}
		if err := ctx.Err(); err != nil {
			// A late-arriving response for a cancelled turn is dropped.
			return err
		}
		if err := s.deliver(ctx, emit, i, audio, &emitted); err != nil {
			return err
		}
	}

	s.logger.Debug("synthesis stream complete", slog.Int("delivered", emitted), slog.Int("chunks", len(chunks)))
	return nil
}

// deliver emits one chunk, inserting the pacing gap between emissions.
func (s *Streamer) deliver(ctx context.Context, emit EmitFunc, index int, audio []byte, emitted *int) error {
	if *emitted > 0 && s.pacingGap > 0 {
		timer := s.clk.Timer(s.pacingGap)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(index, audio); err != nil {
		return err
	}
	*emitted++
	return nil
}

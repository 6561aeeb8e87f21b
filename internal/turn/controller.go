package turn

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vocora/vocora/internal/router"
	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/synth"
	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/stt"
)

// Emitter delivers turn output to the client connection. Implementations
// must be safe for concurrent use.
type Emitter interface {
	Status(text string)
	Transcript(text string, final bool)
	Reply(text string)
	Audio(index int, audio []byte)
	StopPlayback()
	SynthesisComplete()
	MemorySnapshot(snap session.Snapshot)
	Error(err error)
}

// Responder produces the reply text for a committed utterance.
type Responder interface {
	Route(ctx context.Context, in router.Input) (string, error)
}

// Synthesizer converts reply text into ordered audio chunks.
type Synthesizer interface {
	Stream(ctx context.Context, text, voice string, emit synth.EmitFunc) error
}

// Config wires a Controller to its collaborators.
type Config struct {
	Session     *session.Session
	STT         stt.Provider
	StreamCfg   stt.StreamConfig
	Responder   Responder
	Synthesizer Synthesizer
	Emitter     Emitter

	Policy CompletionPolicy
	Clock  clock.Clock
	Logger *slog.Logger
}

// activeTurn is one in-flight reply. cancel aborts generation and
// synthesis; done closes when the turn goroutine exits.
type activeTurn struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller runs the turn-taking state machine for one session. At most
// one reply is in flight at any moment; a newly committed utterance or a
// barge-in cancels the previous one before anything new is emitted.
type Controller struct {
	session     *session.Session
	sttProvider stt.Provider
	streamCfg   stt.StreamConfig
	responder   Responder
	synth       Synthesizer
	emitter     Emitter
	policy      CompletionPolicy
	clk         clock.Clock
	logger      *slog.Logger

	state atomic.Int32

	mu           sync.Mutex
	stream       stt.Stream
	attachCtx    context.Context
	parts        []string
	pendingTimer *clock.Timer
	active       *activeTurn
	closed       bool
	pumpDone     chan struct{}

	closeOnce sync.Once
}

// NewController creates a Controller for one session.
func NewController(cfg Config) *Controller {
	if cfg.Policy == (CompletionPolicy{}) {
		cfg.Policy = DefaultCompletionPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Controller{
		session:     cfg.Session,
		sttProvider: cfg.STT,
		streamCfg:   cfg.StreamCfg,
		responder:   cfg.Responder,
		synth:       cfg.Synthesizer,
		emitter:     cfg.Emitter,
		policy:      cfg.Policy,
		clk:         cfg.Clock,
		logger:      cfg.Logger,
	}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the current conversational phase.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Attach opens the recognition stream and starts consuming transcript
// events. The context bounds every turn started afterwards.
func (c *Controller) Attach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ai.ErrInvalidInput
	}
	if c.stream != nil {
		return nil
	}
	stream, err := c.sttProvider.NewStream(ctx, c.streamCfg)
	if err != nil {
		return ai.NewRecoverableError(err, "open recognition stream")
	}
	c.stream = stream
	c.attachCtx = ctx
	done := make(chan struct{})
	c.pumpDone = done
	c.setState(StateListening)
	c.emitter.Status("Listening")
	go c.pump(stream, done)
	return nil
}

// Feed forwards one audio frame to the recognizer. Frames arriving while
// no stream is open are dropped; frames keep flowing in every state so
// barge-in speech is still transcribed.
func (c *Controller) Feed(frame []byte) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Push(frame)
}

// Detach closes audio capture. A pending utterance still commits after
// its debounce; an in-flight reply keeps playing.
func (c *Controller) Detach() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn("closing recognition stream", slog.String("error", err.Error()))
		}
	}
}

// CancelReply aborts the in-flight reply, if any, exactly as a spoken
// barge-in would.
func (c *Controller) CancelReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptLocked()
}

// Close tears the controller down: cancels any in-flight turn, stops the
// debounce timer, and closes the recognition stream. No stop-playback or
// error is emitted; the connection is already gone. Idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if c.pendingTimer != nil {
			c.pendingTimer.Stop()
			c.pendingTimer = nil
		}
		if c.active != nil {
			c.active.cancel()
			c.active = nil
		}
		stream := c.stream
		c.stream = nil
		c.setState(StateIdle)
		c.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
	})
}

// Done closes when the transcript pump started by the most recent Attach
// has exited. With no pump running it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pumpDone == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.pumpDone
}

func (c *Controller) pump(stream stt.Stream, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.pumpDone == done {
			c.pumpDone = nil
		}
		c.mu.Unlock()
		close(done)
	}()
	for ev := range stream.Events() {
		c.handleEvent(ev)
	}
}

func (c *Controller) handleEvent(ev stt.Event) {
	c.session.Touch(c.clk.Now())

	switch ev.Type {
	case stt.EventError:
		c.logger.Warn("recognition error", slog.String("error", ev.Err.Error()))
		c.emitter.Error(ev.Err)

	case stt.EventInterim:
		if c.policy.BargeIn(ev.Text) {
			c.mu.Lock()
			c.interruptLocked()
			c.mu.Unlock()
		}
		if c.policy.Discard(ev.Text, ev.Confidence) {
			return
		}
		c.emitter.Transcript(ev.Text, false)

	case stt.EventFinal:
		if c.policy.Discard(ev.Text, ev.Confidence) {
			c.logger.Debug("discarding low-confidence fragment", slog.String("text", ev.Text))
			return
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		c.mu.Lock()
		c.parts = append(c.parts, text)
		if c.policy.Ready(ev) {
			c.scheduleCommitLocked(c.policy.Debounce(ev.SpeechFinal))
		}
		c.mu.Unlock()
		c.emitter.Transcript(text, true)
	}
}

// scheduleCommitLocked (re)arms the debounce timer. A later final
// transcript restarts the window so trailing speech joins the utterance.
func (c *Controller) scheduleCommitLocked(d time.Duration) {
	if c.closed {
		return
	}
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
	}
	if c.State() == StateListening {
		c.setState(StateEvaluating)
	}
	c.pendingTimer = c.clk.AfterFunc(d, c.commit)
}

// commit seals the accumulated utterance and starts its turn. Any turn
// still in flight is interrupted first.
func (c *Controller) commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pendingTimer = nil
	utterance := strings.TrimSpace(strings.Join(c.parts, " "))
	c.parts = nil
	if utterance == "" {
		if c.State() == StateEvaluating {
			c.setState(StateListening)
		}
		return
	}
	c.interruptLocked()

	ctx := c.attachCtx
	if ctx == nil {
		ctx = context.Background()
	}
	turnCtx, cancel := context.WithCancel(ctx)
	t := &activeTurn{cancel: cancel, done: make(chan struct{})}
	c.active = t
	c.setState(StateGenerating)
	c.emitter.Status("Thinking...")
	go c.runTurn(turnCtx, t, utterance)
}

// interruptLocked cancels the in-flight turn and tells the client to
// stop playback. The emitter calls happen under the controller mutex,
// the same mutex every audio emission takes, so stop-playback is always
// ordered before any further audio. No-op when nothing is in flight.
func (c *Controller) interruptLocked() {
	if c.active == nil {
		return
	}
	t := c.active
	c.active = nil
	t.cancel()
	c.setState(StateInterrupted)
	c.emitter.StopPlayback()
	c.setState(StateListening)
	c.emitter.Status("Listening")
}

func (c *Controller) runTurn(ctx context.Context, t *activeTurn, utterance string) {
	defer close(t.done)
	defer c.finish(t)

	c.session.ObserveUtterance(utterance)
	in := router.Input{
		Utterance:     utterance,
		MemoryContext: c.session.MemoryContext(),
		Location:      c.session.Location(),
	}
	if doc := c.session.Document(); doc != nil {
		in.DocumentText = doc.Content
	}

	reply, err := c.responder.Route(ctx, in)
	if err != nil {
		if !ai.IsCancellation(err) {
			c.logger.Error("reply generation failed", slog.String("error", err.Error()))
			c.emitter.Error(err)
		}
		return
	}
	// The reply is emitted under the same mutex interruptLocked holds, so
	// a barge-in landing after generation finished can never let the
	// cancelled turn's text reach the client after stop-playback.
	c.mu.Lock()
	if c.active != t || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.emitter.Reply(reply)
	c.session.Observe(utterance, reply)
	c.emitter.MemorySnapshot(c.session.MemorySnapshot())
	c.setState(StateSynthesizing)
	c.emitter.Status("Speaking...")
	c.mu.Unlock()

	err = c.synth.Stream(ctx, reply, c.session.Voice(), func(index int, audio []byte) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.active != t {
			return context.Canceled
		}
		c.emitter.Audio(index, audio)
		return nil
	})
	if err != nil {
		if !ai.IsCancellation(err) {
			c.logger.Error("synthesis failed", slog.String("error", err.Error()))
			c.emitter.Error(err)
		}
		return
	}

	c.mu.Lock()
	if c.active == t {
		c.emitter.SynthesisComplete()
	}
	c.mu.Unlock()
}

// finish releases the active slot if this turn still owns it and returns
// the session to listening.
func (c *Controller) finish(t *activeTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != t {
		return
	}
	c.active = nil
	if !c.closed {
		c.setState(StateListening)
		c.emitter.Status("Listening")
	}
}

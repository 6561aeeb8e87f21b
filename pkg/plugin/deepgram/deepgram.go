// Package deepgram provides a streaming speech-to-text back-end on the
// Deepgram live transcription API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/stt"
)

const (
	defaultBaseURL = "wss://api.deepgram.com/v1/listen"

	// Model is the transcription model requested for every stream.
	Model = "nova-2"

	keepAliveInterval = 5 * time.Second
)

// STT implements stt.Provider on the Deepgram live endpoint.
type STT struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// Option configures the STT client.
type Option func(*STT)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(s *STT) { s.baseURL = u }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *STT) { s.logger = l }
}

// New creates a Deepgram recognition back-end.
func New(apiKey string, opts ...Option) *STT {
	s := &STT{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities returns the supported recognition features.
func (s *STT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		Streaming:      true,
		InterimResults: true,
		SampleRates:    []int{8000, 16000, 24000, 48000},
		Languages:      []string{"en-US", "en-IN", "en-GB", "hi", "es", "fr", "de"},
	}
}

// NewStream opens a live recognition connection.
func (s *STT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram URL: %w", err)
	}

	q := u.Query()
	q.Set("model", Model)
	q.Set("language", cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.NumChannels))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("vad_events", "true")
	q.Set("interim_results", strconv.FormatBool(cfg.Interim))
	if cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(int(cfg.Endpointing.Milliseconds())))
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+s.apiKey)

	s.logger.Debug("connecting to deepgram", slog.String("url", u.String()))

	conn, _, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, ai.NewRecoverableError(err, "deepgram connection failed")
	}

	st := &liveStream{
		conn:   conn,
		events: make(chan stt.Event, 32),
		done:   make(chan struct{}),
		logger: s.logger,
	}
	go st.readLoop()
	go st.keepAlive()
	return st, nil
}

// liveStream is one active Deepgram connection.
type liveStream struct {
	conn   *websocket.Conn
	events chan stt.Event
	logger *slog.Logger

	writeMu sync.Mutex
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// resultMessage is the Deepgram Results payload, reduced to what the
// pipeline consumes.
type resultMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Push forwards one raw PCM frame.
func (s *liveStream) Push(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: recognition stream closed", stt.ErrRecoverable)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return ai.NewRecoverableError(err, "forwarding audio frame")
	}
	return nil
}

// Events returns the recognition event channel.
func (s *liveStream) Events() <-chan stt.Event {
	return s.events
}

// Close sends CloseStream so Deepgram flushes pending finals, then tears
// the socket down. Idempotent.
func (s *liveStream) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *liveStream) readLoop() {
	defer close(s.events)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("deepgram read failed", slog.String("error", err.Error()))
				s.emit(stt.Event{
					Type: stt.EventError,
					Err:  ai.NewRecoverableError(err, "recognition connection lost"),
				})
			}
			return
		}

		var res resultMessage
		if err := json.Unmarshal(msg, &res); err != nil {
			s.logger.Warn("unparseable deepgram message", slog.String("error", err.Error()))
			continue
		}
		if res.Type != "Results" || len(res.Channel.Alternatives) == 0 {
			continue
		}

		alt := res.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		ev := stt.Event{
			Type:       stt.EventInterim,
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
		}
		if res.IsFinal {
			ev.Type = stt.EventFinal
			ev.SpeechFinal = res.SpeechFinal
		}
		s.emit(ev)
	}
}

func (s *liveStream) emit(ev stt.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// keepAlive pings Deepgram so the connection survives user silence.
func (s *liveStream) keepAlive() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			if !s.closed {
				s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			}
			s.writeMu.Unlock()
		}
	}
}

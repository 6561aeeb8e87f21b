package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/vocora/vocora/pkg/ai/stt"
)

// fakeDeepgram accepts one live connection and scripts Results frames.
// Closing drop hangs up the upgraded connection from the server side.
type fakeDeepgram struct {
	t        *testing.T
	upgrader websocket.Upgrader

	gotQuery  chan string
	gotAuth   chan string
	drop      chan struct{}
	responses []string
}

func newFakeDeepgram(t *testing.T, responses ...string) *httptest.Server {
	f := &fakeDeepgram{
		t:         t,
		gotQuery:  make(chan string, 1),
		gotAuth:   make(chan string, 1),
		drop:      make(chan struct{}),
		responses: responses,
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeDeepgram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.gotQuery <- r.URL.RawQuery
	f.gotAuth <- r.Header.Get("Authorization")
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	for _, res := range f.responses {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(res)); err != nil {
			return
		}
	}
	// Drain until the client goes away or the test drops the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	select {
	case <-f.drop:
	case <-done:
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func streamConfig() stt.StreamConfig {
	return stt.StreamConfig{
		SampleRate:  16000,
		NumChannels: 1,
		Language:    "en-IN",
		Endpointing: 250 * time.Millisecond,
		Interim:     true,
	}
}

func collect(t *testing.T, events <-chan stt.Event, n int) []stt.Event {
	t.Helper()
	var out []stt.Event
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestNewStreamRequestShape(t *testing.T) {
	is := is.New(t)

	srv := newFakeDeepgram(t)
	provider := New("dg-key", WithBaseURL(wsURL(srv)))

	stream, err := provider.NewStream(context.Background(), streamConfig())
	is.NoErr(err)
	defer stream.Close()

	f := srv.Config.Handler.(*fakeDeepgram)
	query := <-f.gotQuery
	is.True(strings.Contains(query, "model=nova-2"))
	is.True(strings.Contains(query, "language=en-IN"))
	is.True(strings.Contains(query, "encoding=linear16"))
	is.True(strings.Contains(query, "sample_rate=16000"))
	is.True(strings.Contains(query, "channels=1"))
	is.True(strings.Contains(query, "punctuate=true"))
	is.True(strings.Contains(query, "interim_results=true"))
	is.True(strings.Contains(query, "endpointing=250"))
	is.Equal(<-f.gotAuth, "Token dg-key")
}

func TestStreamNormalizesResults(t *testing.T) {
	is := is.New(t)

	srv := newFakeDeepgram(t,
		`{"type":"Metadata","request_id":"abc"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hello th","confidence":0.62}]}}`,
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"Hello there.","confidence":0.97}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`,
	)
	provider := New("dg-key", WithBaseURL(wsURL(srv)))

	stream, err := provider.NewStream(context.Background(), streamConfig())
	is.NoErr(err)
	defer stream.Close()

	events := collect(t, stream.Events(), 2)

	is.Equal(events[0].Type, stt.EventInterim)
	is.Equal(events[0].Text, "hello th")
	is.True(!events[0].SpeechFinal)

	is.Equal(events[1].Type, stt.EventFinal)
	is.Equal(events[1].Text, "Hello there.")
	is.True(events[1].SpeechFinal)
	is.True(events[1].Confidence > 0.9)
}

func TestStreamPushAfterCloseFails(t *testing.T) {
	is := is.New(t)

	srv := newFakeDeepgram(t)
	provider := New("dg-key", WithBaseURL(wsURL(srv)))

	stream, err := provider.NewStream(context.Background(), streamConfig())
	is.NoErr(err)

	is.NoErr(stream.Push([]byte{0x00, 0x01}))
	is.NoErr(stream.Close())
	is.NoErr(stream.Close()) // idempotent
	is.True(stream.Push([]byte{0x00}) != nil)
}

func TestStreamEventsCloseWhenServerDrops(t *testing.T) {
	is := is.New(t)

	srv := newFakeDeepgram(t)
	provider := New("dg-key", WithBaseURL(wsURL(srv)))

	stream, err := provider.NewStream(context.Background(), streamConfig())
	is.NoErr(err)

	f := srv.Config.Handler.(*fakeDeepgram)
	close(f.drop)

	// The dropped connection surfaces as a recoverable error event and
	// then the channel closes.
	deadline := time.After(2 * time.Second)
	sawError := false
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				is.True(sawError)
				stream.Close()
				return
			}
			if ev.Type == stt.EventError {
				sawError = true
			}
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}
}

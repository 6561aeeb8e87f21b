package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/vocora/vocora/internal/router"
	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/synth"
	"github.com/vocora/vocora/pkg/ai/llm"
	llmfake "github.com/vocora/vocora/pkg/ai/llm/fake"
	sttfake "github.com/vocora/vocora/pkg/ai/stt/fake"
	ttsfake "github.com/vocora/vocora/pkg/ai/tts/fake"
)

type testEnv struct {
	srv   *httptest.Server
	store *session.MemStore
	stt   *sttfake.FakeSTT
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := session.NewMemStore(session.StoreConfig{})
	fakeSTT := sttfake.NewFakeSTT()
	r := router.New(router.Config{
		Fast: []llm.Provider{llmfake.NewFakeLLM("fast", "Hey! Nice to meet you.")},
		Deep: []llm.Provider{llmfake.NewFakeLLM("deep", "A considered answer.")},
	})

	s := New(Config{
		Store:        store,
		STT:          fakeSTT,
		Responder:    r,
		Synthesizer:  synth.NewStreamer(ttsfake.NewFakeTTS(), synth.WithPacingGap(0)),
		Voices:       []string{"en-US-terrell", "en-GB-emma"},
		DefaultVoice: "en-US-terrell",
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store, stt: fakeSTT}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil consumes frames until a JSON message of the wanted type
// arrives, returning it plus any binary frames seen along the way.
func readUntil(t *testing.T, conn *websocket.Conn, want string) (serverMessage, [][]byte) {
	t.Helper()
	var audio [][]byte
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if msgType == websocket.BinaryMessage {
			audio = append(audio, payload)
			continue
		}
		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type == want {
			return msg, audio
		}
	}
}

func handshake(t *testing.T, conn *websocket.Conn, sessionID, voice string) string {
	t.Helper()
	err := conn.WriteJSON(clientMessage{Type: "handshake", SessionID: sessionID, Voice: voice})
	if err != nil {
		t.Fatalf("handshake write: %v", err)
	}
	msg, _ := readUntil(t, conn, "session_confirmed")
	return msg.SessionID
}

func TestHandshakeGeneratesToken(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	token := handshake(t, conn, "", "")
	is.True(token != "")

	sess, ok := env.store.Get(token)
	is.True(ok)
	is.Equal(sess.Voice(), "en-US-terrell") // default applied
}

func TestHandshakeKeepsProvidedToken(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	token := handshake(t, conn, "my-session", "en-GB-emma")
	is.Equal(token, "my-session")

	sess, ok := env.store.Get("my-session")
	is.True(ok)
	is.Equal(sess.Voice(), "en-GB-emma")
}

func TestConversationOverWebsocket(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	handshake(t, conn, "conv-session", "")
	is.NoErr(conn.WriteJSON(clientMessage{Type: "start_live"}))
	readUntil(t, conn, "status") // Listening

	// Microphone frames are forwarded to the recognizer.
	is.NoErr(conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	var stream *sttfake.FakeStream
	deadline := time.Now().Add(2 * time.Second)
	for stream == nil && time.Now().Before(deadline) {
		stream = env.stt.LastStream()
		time.Sleep(time.Millisecond)
	}
	is.True(stream != nil)

	stream.EmitFinal("Hello there, how are you doing today", 0.95, true)

	reply, _ := readUntil(t, conn, "reply")
	is.Equal(reply.Text, "Hey! Nice to meet you.")

	_, audio := readUntil(t, conn, "tts_complete")
	is.True(len(audio) >= 1)
}

func TestStartStopLiveCycles(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	handshake(t, conn, "cycle-session", "")

	// Repeated start/stop cycles each open a fresh recognition stream.
	for i := 0; i < 2; i++ {
		is.NoErr(conn.WriteJSON(clientMessage{Type: "start_live"}))
		readUntil(t, conn, "status") // Listening
		is.NoErr(conn.WriteJSON(clientMessage{Type: "stop_live"}))
		readUntil(t, conn, "status") // Stopped
	}

	is.NoErr(conn.WriteJSON(clientMessage{Type: "start_live"}))
	readUntil(t, conn, "status")

	var stream *sttfake.FakeStream
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := env.stt.LastStream(); s != nil && !s.Closed() {
			stream = s
			break
		}
		time.Sleep(time.Millisecond)
	}
	is.True(stream != nil)

	stream.EmitFinal("Hello there, how are you doing today", 0.95, true)
	reply, _ := readUntil(t, conn, "reply")
	is.Equal(reply.Text, "Hey! Nice to meet you.")
}

func TestVoiceChange(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	handshake(t, conn, "voice-session", "")

	is.NoErr(conn.WriteJSON(clientMessage{Type: "voice_change", Voice: "en-GB-emma"}))
	msg, _ := readUntil(t, conn, "voice_changed")
	is.Equal(msg.Voice, "en-GB-emma")

	sess, _ := env.store.Get("voice-session")
	is.Equal(sess.Voice(), "en-GB-emma")

	is.NoErr(conn.WriteJSON(clientMessage{Type: "voice_change", Voice: "xx-nope"}))
	errMsg, _ := readUntil(t, conn, "error")
	is.True(strings.Contains(errMsg.Message, "unknown voice"))
	is.Equal(sess.Voice(), "en-GB-emma") // unchanged
}

func TestStreamingRequiresHandshake(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	conn := env.dial(t)

	is.NoErr(conn.WriteJSON(clientMessage{Type: "start_live"}))
	msg, _ := readUntil(t, conn, "error")
	is.True(strings.Contains(msg.Message, "handshake required"))
}

func multipartUpload(t *testing.T, url, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(content)
	w.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/upload", &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadAttachesDocument(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	resp := multipartUpload(t, env.srv.URL, "upload-session", "notes.txt", []byte("The quarterly report shows growth."))
	is.Equal(resp.StatusCode, http.StatusOK)

	var body uploadResponse
	is.NoErr(json.NewDecoder(resp.Body).Decode(&body))
	is.True(body.Success)
	is.Equal(body.Filename, "notes.txt")
	is.Equal(body.SessionID, "upload-session")

	sess, ok := env.store.Get("upload-session")
	is.True(ok)
	doc := sess.Document()
	is.True(doc != nil)
	is.Equal(doc.Content, "The quarterly report shows growth.")
}

func TestUploadRejectsWordDocuments(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	resp := multipartUpload(t, env.srv.URL, "upload-session", "letter.docx", []byte("zip bytes"))
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	var body uploadResponse
	is.NoErr(json.NewDecoder(resp.Body).Decode(&body))
	is.True(!body.Success)
	is.True(strings.Contains(body.Error, "Word documents"))
}

func TestUploadRequiresSessionToken(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	resp := multipartUpload(t, env.srv.URL, "", "notes.txt", []byte("content"))
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestHealth(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	env.store.GetOrCreate("a")
	env.store.GetOrCreate("b")

	resp, err := http.Get(env.srv.URL + "/health")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	var body map[string]any
	is.NoErr(json.NewDecoder(resp.Body).Decode(&body))
	is.Equal(body["status"], "ok")
	is.Equal(body["sessions"], float64(2))
}

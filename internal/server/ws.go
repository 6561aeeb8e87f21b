package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/turn"
)

// clientMessage is any JSON control message from the client. Binary
// frames carry microphone audio and bypass JSON decoding entirely.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

type serverMessage struct {
	Type      string            `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	Status    string            `json:"status,omitempty"`
	Text      string            `json:"text,omitempty"`
	IsFinal   *bool             `json:"isFinal,omitempty"`
	Voice     string            `json:"voice,omitempty"`
	Message   string            `json:"message,omitempty"`
	Memory    *session.Snapshot `json:"memory,omitempty"`
}

// wsConn serializes writes to one websocket connection. Gorilla permits a
// single concurrent writer; the turn pipeline emits from several
// goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(msg serverMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) writeBinary(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// wsEmitter bridges turn output onto the client protocol. Audio chunks go
// out as raw binary frames in emission order; everything else is JSON.
type wsEmitter struct {
	conn   *wsConn
	logger *slog.Logger
}

func (e *wsEmitter) send(msg serverMessage) {
	if err := e.conn.writeJSON(msg); err != nil {
		e.logger.Debug("client write failed", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
}

func (e *wsEmitter) Status(text string) {
	e.send(serverMessage{Type: "status", Status: text})
}

func (e *wsEmitter) Transcript(text string, final bool) {
	e.send(serverMessage{Type: "transcript", Text: text, IsFinal: &final})
}

func (e *wsEmitter) Reply(text string) {
	e.send(serverMessage{Type: "reply", Text: text})
}

func (e *wsEmitter) Audio(index int, audio []byte) {
	if err := e.conn.writeBinary(audio); err != nil {
		e.logger.Debug("audio write failed", slog.Int("chunk", index), slog.String("error", err.Error()))
	}
}

func (e *wsEmitter) StopPlayback() {
	e.send(serverMessage{Type: "stop_audio"})
}

func (e *wsEmitter) SynthesisComplete() {
	e.send(serverMessage{Type: "tts_complete"})
}

func (e *wsEmitter) MemorySnapshot(snap session.Snapshot) {
	e.send(serverMessage{Type: "memory_update", Memory: &snap})
}

func (e *wsEmitter) Error(err error) {
	e.send(serverMessage{Type: "error", Message: userMessage(err)})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &wsConn{conn: raw}
	emitter := &wsEmitter{conn: conn, logger: s.logger}

	var (
		token string
		sess  *session.Session
		ctrl  *turn.Controller
	)
	defer func() {
		if ctrl != nil {
			ctrl.Close()
			<-ctrl.Done()
		}
		if token != "" {
			s.cfg.Store.Release(token)
		}
		raw.Close()
		s.logger.Info("client disconnected", slog.String("session", token))
	}()

	s.logger.Info("client connected", slog.String("remote", r.RemoteAddr))

	for {
		msgType, payload, err := raw.ReadMessage()
		if err != nil {
			return
		}

		if msgType == websocket.BinaryMessage {
			if ctrl == nil {
				continue
			}
			if err := ctrl.Feed(payload); err != nil {
				s.logger.Debug("dropping audio frame", slog.String("error", err.Error()))
			}
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			emitter.send(serverMessage{Type: "error", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case "handshake":
			if ctrl != nil {
				ctrl.Close()
				<-ctrl.Done()
				ctrl = nil
			}
			token = msg.SessionID
			if token == "" {
				token = uuid.NewString()
			}
			sess = s.cfg.Store.GetOrCreate(token)
			voice := msg.Voice
			if !s.voices[voice] {
				voice = s.cfg.DefaultVoice
			}
			sess.SetVoice(voice)
			ctrl = turn.NewController(turn.Config{
				Session:     sess,
				STT:         s.cfg.STT,
				StreamCfg:   s.cfg.StreamCfg,
				Responder:   s.cfg.Responder,
				Synthesizer: s.cfg.Synthesizer,
				Emitter:     emitter,
				Policy:      s.cfg.Policy,
				Clock:       s.clk,
				Logger:      s.logger.With(slog.String("session", token)),
			})
			s.logger.Info("session attached", slog.String("session", token), slog.String("voice", voice))
			emitter.send(serverMessage{Type: "session_confirmed", SessionID: token})

		case "start_live":
			if ctrl == nil {
				emitter.send(serverMessage{Type: "error", Message: "handshake required before streaming"})
				continue
			}
			if err := ctrl.Attach(ctx); err != nil {
				emitter.Error(err)
			}

		case "stop_live":
			if ctrl != nil {
				ctrl.Detach()
			}
			emitter.send(serverMessage{Type: "status", Status: "Stopped"})

		case "client_stop_tts":
			if ctrl != nil {
				ctrl.CancelReply()
			}

		case "voice_change":
			if sess == nil {
				emitter.send(serverMessage{Type: "error", Message: "handshake required before voice change"})
				continue
			}
			if !s.voices[msg.Voice] {
				emitter.send(serverMessage{Type: "error", Message: "unknown voice: " + msg.Voice})
				continue
			}
			sess.SetVoice(msg.Voice)
			emitter.send(serverMessage{Type: "voice_changed", Voice: msg.Voice})

		default:
			s.logger.Debug("ignoring unknown message", slog.String("type", msg.Type))
		}
	}
}

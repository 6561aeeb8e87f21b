// Package server exposes the voice assistant over HTTP: a websocket
// endpoint carrying the realtime conversation, a document upload
// endpoint, and a health probe.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/vocora/vocora/internal/ingest"
	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/turn"
	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/stt"
)

// Config wires the Server to its collaborators.
type Config struct {
	Store       session.Store
	STT         stt.Provider
	StreamCfg   stt.StreamConfig
	Responder   turn.Responder
	Synthesizer turn.Synthesizer

	// Voices are the accepted voice identifiers; DefaultVoice is applied
	// to sessions that never chose one.
	Voices       []string
	DefaultVoice string

	MaxUploadBytes int64
	Policy         turn.CompletionPolicy

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server handles client connections.
type Server struct {
	cfg      Config
	clk      clock.Clock
	logger   *slog.Logger
	upgrader websocket.Upgrader
	voices   map[string]bool
	started  time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	voices := make(map[string]bool, len(cfg.Voices))
	for _, v := range cfg.Voices {
		voices[v] = true
	}
	return &Server{
		cfg:    cfg,
		clk:    cfg.Clock,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// Browser clients connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		voices:  voices,
		started: cfg.Clock.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Extracted int    `json:"extracted,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.Header.Get("X-Session-Token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "session token required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+4096)
	file, header, err := r.FormFile("document")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "no file uploaded"})
		return
	}
	defer file.Close()

	if err := ingest.Validate(header.Filename, header.Size, s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: userMessage(err)})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: "could not read upload"})
		return
	}

	doc, err := ingest.Ingest(header.Filename, data, s.clk.Now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ai.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, uploadResponse{Error: userMessage(err)})
		return
	}

	sess := s.cfg.Store.GetOrCreate(token)
	sess.AttachDocument(doc)
	sess.Touch(s.clk.Now())

	s.logger.Info("document attached",
		slog.String("session", token),
		slog.String("filename", doc.Filename),
		slog.Int("extracted", len(doc.Content)))

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		Filename:  doc.Filename,
		Size:      doc.Size,
		Extracted: len(doc.Content),
		SessionID: token,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.clk.Now().UTC().Format(time.RFC3339),
		"uptime":    s.clk.Now().Sub(s.started).Seconds(),
		"sessions":  s.cfg.Store.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// userMessage strips the sentinel prefix so clients see only the
// human-readable part.
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ai.ErrInvalidInput, ai.ErrRecoverable, ai.ErrFatal} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Store owns all live sessions and enforces idle expiry.
type Store interface {
	// GetOrCreate returns the session for token, creating it if needed.
	GetOrCreate(token string) *Session

	// Get returns the session for token if it exists.
	Get(token string) (*Session, bool)

	// Release schedules removal after the disconnect grace window unless
	// the session becomes active again.
	Release(token string)

	// Len returns the number of live sessions.
	Len() int
}

// StoreConfig configures the in-memory store.
type StoreConfig struct {
	IdleTimeout     time.Duration // absolute idle timeout enforced by sweep
	DisconnectGrace time.Duration // grace window after socket disconnect
	SweepInterval   time.Duration
	Clock           clock.Clock
	Logger          *slog.Logger
}

// MemStore is the in-memory Store implementation.
type MemStore struct {
	cfg    StoreConfig
	clk    clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemStore creates an in-memory session store.
func NewMemStore(cfg StoreConfig) *MemStore {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.DisconnectGrace == 0 {
		cfg.DisconnectGrace = 5 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	return &MemStore{
		cfg:      cfg,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for token, creating it if needed.
func (s *MemStore) GetOrCreate(token string) *Session {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[token]; ok {
		sess.Touch(now)
		return sess
	}

	sess := &Session{
		Token:        token,
		createdAt:    now,
		lastActivity: now,
		memory: Memory{
			Date: now.Format("Monday, January 2, 2006"),
		},
	}
	s.sessions[token] = sess
	s.logger.Info("session created", slog.String("token", token))
	return sess
}

// Get returns the session for token if it exists.
func (s *MemStore) Get(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

// Release schedules removal after the disconnect grace window. The session
// survives if it sees activity before the window elapses.
func (s *MemStore) Release(token string) {
	s.clk.AfterFunc(s.cfg.DisconnectGrace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.sessions[token]
		if !ok {
			return
		}
		if s.clk.Now().Sub(sess.LastActivity()) >= s.cfg.DisconnectGrace {
			delete(s.sessions, token)
			s.logger.Info("session released", slog.String("token", token))
		}
	})
}

// Len returns the number of live sessions.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle past the absolute timeout and returns how
// many were removed.
func (s *MemStore) Sweep() int {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if now.Sub(sess.LastActivity()) > s.cfg.IdleTimeout {
			delete(s.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("idle sessions swept", slog.Int("count", removed))
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (s *MemStore) Run(ctx context.Context) {
	ticker := s.clk.Ticker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Package session holds per-conversation state: selected voice, attached
// document, rolling memory, and activity timestamps. Sessions are owned by
// the Store and expire after idle timeouts.
package session

import (
	"sync"
	"time"
)

// Document is an attached document whose text grounds document queries.
type Document struct {
	Filename   string
	Content    string
	Size       int64
	UploadedAt time.Time
}

// Session is the state of one conversation.
type Session struct {
	Token string

	mu           sync.Mutex
	voice        string
	document     *Document
	memory       Memory
	createdAt    time.Time
	lastActivity time.Time
}

// Voice returns the selected synthesis voice.
func (s *Session) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetVoice selects the synthesis voice for future replies.
func (s *Session) SetVoice(voice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = voice
}

// Document returns the attached document, or nil.
func (s *Session) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// AttachDocument stores an ingested document on the session.
func (s *Session) AttachDocument(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = doc
}

// Touch records activity, deferring idle expiry.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// LastActivity returns the time of the most recent activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Observe records one completed exchange in rolling memory, running the
// name and location detectors over the user utterance.
func (s *Session) Observe(userText, replyText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.observe(userText, replyText)
}

// ObserveUtterance runs the detectors over a user utterance without
// recording an exchange. Used on final transcripts before routing.
func (s *Session) ObserveUtterance(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.detect(text)
}

// MemoryContext renders the bounded memory context for prompt assembly.
func (s *Session) MemoryContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.contextPrompt()
}

// MemorySnapshot returns the client-facing view of session memory.
func (s *Session) MemorySnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.snapshot()
}

// Location returns the remembered location, or empty.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Location
}

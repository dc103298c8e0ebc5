package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a speech session
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionConnecting   SessionState = "connecting"
	SessionHandshaking  SessionState = "handshaking"
	SessionActive       SessionState = "active"
	SessionEnding       SessionState = "ending"
)

// ErrInvalidTransition is returned when a lifecycle transition is not allowed
// from the session's current state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Session represents one logical conversation attempt over the speech stream.
// Identifiers are assigned when the transport opens and are never reused
// across reconnects.
type Session struct {
	PromptName       string       `json:"prompt_name"`
	TextContentName  string       `json:"text_content_name"`
	AudioContentName string       `json:"audio_content_name"`
	State            SessionState `json:"state"`
	Started          bool         `json:"started"`
	StartedAt        time.Time    `json:"started_at"`
}

// NewSession creates a session in the disconnected state with no identifiers.
func NewSession() *Session {
	return &Session{
		State: SessionDisconnected,
	}
}

// BeginConnect moves the session into the connecting state. Only valid from
// disconnected.
func (s *Session) BeginConnect() error {
	if s.State != SessionDisconnected {
		return ErrInvalidTransition
	}
	s.State = SessionConnecting
	return nil
}

// BeginHandshake assigns fresh identifiers and moves into handshaking. Only
// valid from connecting, i.e. after the transport reported open.
func (s *Session) BeginHandshake() error {
	if s.State != SessionConnecting {
		return ErrInvalidTransition
	}
	s.PromptName = uuid.New().String()
	s.TextContentName = uuid.New().String()
	s.AudioContentName = uuid.New().String()
	s.State = SessionHandshaking
	return nil
}

// Activate marks the handshake sequence complete. Only valid from handshaking.
func (s *Session) Activate() error {
	if s.State != SessionHandshaking {
		return ErrInvalidTransition
	}
	s.State = SessionActive
	s.Started = true
	s.StartedAt = time.Now()
	return nil
}

// BeginEnd moves into the ending state so the teardown events can be emitted.
// Only valid from active.
func (s *Session) BeginEnd() error {
	if s.State != SessionActive {
		return ErrInvalidTransition
	}
	s.State = SessionEnding
	return nil
}

// Drop forces the session back to disconnected. Valid from any state; used
// both for orderly teardown completion and transport-level close/error.
func (s *Session) Drop() {
	s.State = SessionDisconnected
	s.Started = false
}

// CanSend reports whether outbound protocol events are allowed. Events sent
// outside these states must be dropped, not queued.
func (s *Session) CanSend() bool {
	return s.State == SessionHandshaking || s.State == SessionActive || s.State == SessionEnding
}

// IsActive reports whether the session is fully established.
func (s *Session) IsActive() bool {
	return s.State == SessionActive
}

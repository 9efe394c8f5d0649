// Package runtime holds the shared mutable core of the server: the
// per-connection Session state, the nickname Registry, and the
// Broadcaster fanning lines out to sessions. It orchestrates state
// without containing protocol grammar or transport logic.
package runtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"minirc/domain"
)

// Session is the server-side state of one connected client.
//
// The outbound channel is the only write path other components may use
// to reach this session's connection. The transport goroutine that owns
// the socket drains it; nothing else ever touches the socket, so two
// broadcasts can never interleave bytes on one connection.
type Session struct {
	ID  uuid.UUID
	log *slog.Logger

	mu       sync.Mutex
	nickname string
	stage    domain.Stage

	outbound  chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session in the Unregistered stage with a bounded
// outbound queue of the given capacity.
func NewSession(log *slog.Logger, outboundCapacity int) *Session {
	id := uuid.New()
	return &Session{
		ID:       id,
		log:      log.With("session", id.String()),
		stage:    domain.Unregistered,
		outbound: make(chan string, outboundCapacity),
		done:     make(chan struct{}),
	}
}

func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

func (s *Session) SetNickname(nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = nickname
}

func (s *Session) Stage() domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// SetStage moves the session forward in its registration. Once Closed,
// the stage never changes again.
func (s *Session) SetStage(stage domain.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == domain.Closed {
		return
	}
	s.stage = stage
}

// TrySend enqueues one line for delivery without ever blocking the
// caller. It reports false when the session is closed or its queue is
// full; a full queue means the line is dropped for this session only.
func (s *Session) TrySend(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- line:
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("Outbound queue full, dropping line", "nickname", s.Nickname())
		return false
	}
}

// Outbound exposes the queue for the transport goroutine to drain.
func (s *Session) Outbound() <-chan string {
	return s.outbound
}

// Done is closed exactly once, when the session terminates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close releases the outbound handle and moves the session to Closed.
// It reports true only for the first caller, so terminal cleanup runs
// at most once even when QUIT races with a transport disconnect.
func (s *Session) Close() bool {
	closed := false
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stage = domain.Closed
		s.mu.Unlock()
		close(s.done)
		closed = true
	})
	return closed
}

package runtime

import (
	"sync"

	"minirc/errors"
)

// Registry is the authoritative nickname -> Session table. A session is
// reachable for broadcast if and only if it is present here. Nicknames
// are case-sensitive.
//
// All mutation goes through the four operations below; callers never
// take the lock themselves or reach into the map. Each operation is a
// single critical section, so uniqueness checks and writes can never
// interleave with another goroutine's.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Insert claims a nickname for a session. The uniqueness check and the
// write happen under one lock, so two sessions racing for the same
// nickname resolve to exactly one winner.
func (r *Registry) Insert(nickname string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[nickname]; taken {
		return errors.ErrNameTaken
	}
	r.sessions[nickname] = session
	return nil
}

// Remove frees a nickname and returns the session that held it.
// Removing an absent nickname is a no-op returning nil.
func (r *Registry) Remove(nickname string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[nickname]
	if !ok {
		return nil
	}
	delete(r.sessions, nickname)
	return session
}

// RemoveIf frees a nickname only while it still maps to the given
// session. Compensating cleanup uses this so it cannot evict a
// newcomer that claimed the name in between.
func (r *Registry) RemoveIf(nickname string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[nickname] != session {
		return false
	}
	delete(r.sessions, nickname)
	return true
}

// Rename atomically moves a session from one nickname to another. If
// the new nickname belongs to a different session it fails and the old
// mapping is left untouched; no intermediate state is ever visible.
func (r *Registry) Rename(oldNickname, newNickname string, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, taken := r.sessions[newNickname]; taken && existing != session {
		return errors.ErrNameTaken
	}
	delete(r.sessions, oldNickname)
	r.sessions[newNickname] = session
	return nil
}

// SnapshotExcept returns a point-in-time view of every session other
// than the excluded nickname. A session removed right after the
// snapshot may still receive one final line; delivery is
// at-least-once-until-removal, not exactly-once.
func (r *Registry) SnapshotExcept(excludedNickname string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for nickname, session := range r.sessions {
		if nickname == excludedNickname {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// Snapshot returns a point-in-time view of every registered session.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Len reports how many nicknames are currently claimed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

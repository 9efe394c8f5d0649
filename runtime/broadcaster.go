package runtime

import (
	"log/slog"
)

// Broadcaster fans a rendered line out to sessions in the room. It only
// ever enqueues onto each session's bounded outbound queue; a stalled
// receiver costs the broadcaster nothing and never delays delivery to
// other sessions. When a queue is full the line is dropped for that
// session only (the drop is logged by the session itself).
//
// The broadcaster never mutates Registry membership.
type Broadcaster struct {
	log      *slog.Logger
	registry *Registry
}

func NewBroadcaster(log *slog.Logger, registry *Registry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

// BroadcastAll delivers a line to every session currently registered.
func (b *Broadcaster) BroadcastAll(line string) {
	b.deliver(b.registry.Snapshot(), line)
}

// BroadcastExcept delivers a line to every session except the named
// one, so a sender does not receive an echo of their own chat line.
func (b *Broadcaster) BroadcastExcept(line, excludedNickname string) {
	b.deliver(b.registry.SnapshotExcept(excludedNickname), line)
}

func (b *Broadcaster) deliver(sessions []*Session, line string) {
	dropped := 0
	for _, session := range sessions {
		if !session.TrySend(line) {
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Warn("Broadcast incomplete", "recipients", len(sessions), "dropped", dropped)
	}
}

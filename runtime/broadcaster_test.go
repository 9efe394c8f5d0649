package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcaster_BroadcastAll_ReachesEveryMember(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(testLogger(), registry)
	alice := newTestSession()
	bob := newTestSession()
	req.NoError(registry.Insert("alice", alice))
	req.NoError(registry.Insert("bob", bob))

	broadcaster.BroadcastAll("hello room")

	req.Equal([]string{"hello room"}, drain(alice))
	req.Equal([]string{"hello room"}, drain(bob))
}

func TestBroadcaster_BroadcastExcept_SkipsTheSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(testLogger(), registry)
	alice := newTestSession()
	bob := newTestSession()
	carol := newTestSession()
	req.NoError(registry.Insert("alice", alice))
	req.NoError(registry.Insert("bob", bob))
	req.NoError(registry.Insert("carol", carol))

	broadcaster.BroadcastExcept("hi from alice", "alice")

	// Everyone but the sender receives the line
	req.Empty(drain(alice))
	req.Equal([]string{"hi from alice"}, drain(bob))
	req.Equal([]string{"hi from alice"}, drain(carol))
}

func TestBroadcaster_SlowSessionDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(testLogger(), registry)
	slow := NewSession(testLogger(), 1)
	fast := newTestSession()
	req.NoError(registry.Insert("slow", slow))
	req.NoError(registry.Insert("fast", fast))

	// Given the slow session's queue is already full
	req.True(slow.TrySend("backlog"))

	// When a broadcast goes out, it returns immediately
	broadcaster.BroadcastAll("fresh news")

	// Then the fast session still got the line; the slow one lost it
	req.Equal([]string{"fresh news"}, drain(fast))
	req.Equal([]string{"backlog"}, drain(slow))
}

func TestBroadcaster_RemovedSessionReceivesNothing(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(testLogger(), registry)
	alice := newTestSession()
	bob := newTestSession()
	req.NoError(registry.Insert("alice", alice))
	req.NoError(registry.Insert("bob", bob))

	registry.Remove("bob")
	broadcaster.BroadcastAll("after removal")

	req.Equal([]string{"after removal"}, drain(alice))
	req.Empty(drain(bob))
}

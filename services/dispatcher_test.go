package services

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"minirc/domain"
	"minirc/moderation"
	"minirc/runtime"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	registry   *runtime.Registry
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := testLogger()
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry)
	moderator, err := moderation.NewModerator(nil, '*')
	require.NoError(t, err)
	return fixture{
		registry:   registry,
		dispatcher: NewDispatcher(log, registry, broadcaster, &moderator, nil, nil),
	}
}

func newSession() *runtime.Session {
	return runtime.NewSession(testLogger(), 16)
}

// register drives a session through NICK+USER and discards the
// registration chatter so tests start from a clean outbound queue.
func (f fixture) register(t *testing.T, nickname string) *runtime.Session {
	t.Helper()
	session := newSession()
	f.dispatcher.Dispatch(session, "NICK "+nickname)
	f.dispatcher.Dispatch(session, "USER "+nickname)
	require.Equal(t, domain.Registered, session.Stage())
	drain(session)
	return session
}

func drain(session *runtime.Session) []string {
	var lines []string
	for {
		select {
		case line := <-session.Outbound():
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func hasCode(lines []string, code string) bool {
	for _, line := range lines {
		if strings.Contains(line, " "+code+" ") {
			return true
		}
	}
	return false
}

func TestDispatcher_NickThenUser_CompletesRegistration(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	// When the session sets a nickname
	f.dispatcher.Dispatch(session, "NICK alice")
	req.Equal(domain.NickSet, session.Stage())
	req.Equal("alice", session.Nickname())
	req.Equal(1, f.registry.Len())

	// And completes registration
	f.dispatcher.Dispatch(session, "USER alice")

	// Then it is registered and welcomed into the room
	req.Equal(domain.Registered, session.Stage())
	lines := drain(session)
	req.True(hasCode(lines, "001"), "expected a welcome reply, got %v", lines)
	req.Contains(lines, ":alice JOIN #Main")
}

func TestDispatcher_EmptyNick_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	f.dispatcher.Dispatch(session, "NICK")

	req.Equal(domain.Unregistered, session.Stage())
	req.True(hasCode(drain(session), "431"))
	req.Zero(f.registry.Len())
}

func TestDispatcher_ChannelLookingNick_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	f.dispatcher.Dispatch(session, "NICK #Main")

	req.True(hasCode(drain(session), "432"))
	req.Zero(f.registry.Len())
}

func TestDispatcher_NickCollision_KeepsOriginalOwner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	// When a second session claims the same nickname
	intruder := newSession()
	f.dispatcher.Dispatch(intruder, "NICK alice")

	// Then it is refused and alice keeps her registration
	req.True(hasCode(drain(intruder), "433"))
	req.Equal(domain.Unregistered, intruder.Stage())
	req.Equal(domain.Registered, alice.Stage())
	req.Equal(1, f.registry.Len())
}

func TestDispatcher_UserBeforeNick_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	f.dispatcher.Dispatch(session, "USER alice")

	req.Equal(domain.Unregistered, session.Stage())
	req.True(hasCode(drain(session), "451"))
}

func TestDispatcher_SecondUser_IsAlreadyRegistered(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.dispatcher.Dispatch(alice, "USER again")

	req.Equal(domain.Registered, alice.Stage())
	req.True(hasCode(drain(alice), "462"))
}

func TestDispatcher_Privmsg_BroadcastsToRoomExceptSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice) // bob's join notice

	f.dispatcher.Dispatch(alice, "PRIVMSG #Main :hi")

	// Bob sees the message, alice gets no echo
	req.Contains(drain(bob), ":alice PRIVMSG #Main :hi")
	req.Empty(drain(alice))
}

func TestDispatcher_Privmsg_RequiresRegistration(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	bob := f.register(t, "bob")
	lurker := newSession()
	f.dispatcher.Dispatch(lurker, "NICK lurker")
	drain(lurker)

	// A session that never sent USER cannot chat
	f.dispatcher.Dispatch(lurker, "PRIVMSG #Main :hi")

	req.True(hasCode(drain(lurker), "451"))
	req.Empty(drain(bob))
}

func TestDispatcher_Privmsg_EmptyText_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "PRIVMSG #Main :")

	req.True(hasCode(drain(alice), "412"))
	req.Empty(drain(bob))
}

func TestDispatcher_Privmsg_WrongChannel_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.dispatcher.Dispatch(alice, "PRIVMSG #other :hi")

	req.True(hasCode(drain(alice), "403"))
}

func TestDispatcher_Join_UnsupportedChannel_IsRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.dispatcher.Dispatch(alice, "JOIN #elsewhere")

	req.True(hasCode(drain(alice), "403"))
}

func TestDispatcher_Join_SupportedChannel_ReannouncesJoin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "JOIN #Main")

	req.Contains(drain(alice), ":alice JOIN #Main")
	req.Contains(drain(bob), ":alice JOIN #Main")
}

func TestDispatcher_NickChange_IsAnnouncedAndRemapped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "NICK alicia")

	req.Equal("alicia", alice.Nickname())
	req.Contains(drain(alice), ":alice NICK alicia")
	req.Contains(drain(bob), ":alice NICK alicia")

	// The old nickname is free again
	newcomer := newSession()
	f.dispatcher.Dispatch(newcomer, "NICK alice")
	req.False(hasCode(drain(newcomer), "433"))
}

func TestDispatcher_NickChange_CollisionKeepsBothSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(bob, "NICK alice")

	req.True(hasCode(drain(bob), "433"))
	req.Equal("bob", bob.Nickname())
	req.Equal("alice", alice.Nickname())
	req.Equal(2, f.registry.Len())
}

func TestDispatcher_NickToCurrentNickname_IsAcknowledged(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "NICK alice")

	// The sender gets a confirmation, the room hears nothing
	req.Contains(drain(alice), ":minirc NOTICE alice :Nickname set to alice")
	req.Empty(drain(bob))
	req.Equal(2, f.registry.Len())
}

func TestDispatcher_NickRacingDisconnect_DoesNotLeakRegistration(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	// The transport detects a dead socket while a NICK is in flight:
	// cleanup completes first, then the handler that already passed its
	// entry check runs.
	f.dispatcher.Disconnect(session, "Connection closed")
	f.dispatcher.handleNick(session, domain.NickCommand{Name: "phoenix"})

	// The closed session must not hold the nickname
	req.Zero(f.registry.Len())
	newcomer := newSession()
	f.dispatcher.Dispatch(newcomer, "NICK phoenix")
	req.False(hasCode(drain(newcomer), "433"))
	req.Equal("phoenix", newcomer.Nickname())
}

func TestDispatcher_RenameRacingDisconnect_DoesNotLeakRegistration(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	// Same interleaving as above, but for a registered session renaming
	f.dispatcher.Disconnect(alice, "Connection closed")
	drain(bob)
	f.dispatcher.handleNick(alice, domain.NickCommand{Name: "alicia"})

	req.Equal(1, f.registry.Len())
	req.Empty(drain(bob))
}

func TestDispatcher_Quit_FreesTheNickname(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "QUIT :bye")

	// Alice is closed and announced as gone
	req.Equal(domain.Closed, alice.Stage())
	req.Contains(drain(bob), ":alice QUIT :bye")
	req.Equal(1, f.registry.Len())

	// A newcomer can claim the freed nickname
	newcomer := newSession()
	f.dispatcher.Dispatch(newcomer, "NICK alice")
	req.False(hasCode(drain(newcomer), "433"))
	req.Equal("alice", newcomer.Nickname())
}

func TestDispatcher_Disconnect_RunsCleanupOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	// Transport drop detection racing a QUIT must not double-announce
	f.dispatcher.Disconnect(alice, "Connection closed")
	f.dispatcher.Disconnect(alice, "Connection closed")

	var departures int
	for _, line := range drain(bob) {
		if strings.Contains(line, ":alice QUIT") {
			departures++
		}
	}
	req.Equal(1, departures)
	req.Equal(1, f.registry.Len())
}

func TestDispatcher_CommandsAfterClose_AreIgnored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.dispatcher.Dispatch(alice, "QUIT :bye")
	drain(alice)

	f.dispatcher.Dispatch(alice, "PRIVMSG #Main :ghost")
	req.Empty(drain(alice))
}

func TestDispatcher_Cap_IsSilentlyIgnored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	f.dispatcher.Dispatch(session, "CAP LS 302")

	req.Empty(drain(session))
	req.Equal(domain.Unregistered, session.Stage())
}

func TestDispatcher_UnknownVerb_GetsErrorReply(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.dispatcher.Dispatch(alice, "WHOIS bob")

	lines := drain(alice)
	req.True(hasCode(lines, "421"), "expected unknown command reply, got %v", lines)
	req.Equal(domain.Registered, alice.Stage())
}

func TestDispatcher_BlankLine_IsIgnored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := newSession()

	f.dispatcher.Dispatch(session, "   ")

	req.Empty(drain(session))
}

func TestDispatcher_CensoredWords_AreMaskedBeforeBroadcast(t *testing.T) {
	req := require.New(t)
	log := testLogger()
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)
	f := fixture{
		registry:   registry,
		dispatcher: NewDispatcher(log, registry, broadcaster, &moderator, nil, nil),
	}
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	drain(alice)

	f.dispatcher.Dispatch(alice, "PRIVMSG #Main :release the badger")

	req.Contains(drain(bob), ":alice PRIVMSG #Main :release the ******")
}

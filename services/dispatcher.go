// Package services routes decoded protocol commands to the runtime
// core. The Dispatcher validates each command against the session's
// registration stage and invokes exactly one state transition.
package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"minirc/domain"
	"minirc/errors"
	"minirc/moderation"
	"minirc/protocol"
	"minirc/repositories"
	"minirc/runtime"
)

const defaultQuitReason = "Client quit"

// Dispatcher holds no per-line state of its own; it is a pure router
// from verbs to Registry/Broadcaster operations. One instance serves
// every connection.
type Dispatcher struct {
	log         *slog.Logger
	registry    *runtime.Registry
	broadcaster *runtime.Broadcaster
	moderator   *moderation.Moderator
	history     repositories.IHistoryRepository
	messages    chan<- domain.Message
}

// NewDispatcher wires the router. history and messages may be nil when
// persistence is disabled; every other dependency is required.
func NewDispatcher(
	log *slog.Logger,
	registry *runtime.Registry,
	broadcaster *runtime.Broadcaster,
	moderator *moderation.Moderator,
	history repositories.IHistoryRepository,
	messages chan<- domain.Message,
) *Dispatcher {
	return &Dispatcher{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		moderator:   moderator,
		history:     history,
		messages:    messages,
	}
}

// Dispatch processes one decoded input line for the originating
// session. Malformed input turns into an error reply, never a panic or
// a dropped connection.
func (d *Dispatcher) Dispatch(session *runtime.Session, line string) {
	cmd := protocol.Parse(line)
	if cmd == nil || session.Stage() == domain.Closed {
		return
	}

	switch c := cmd.(type) {
	case domain.NickCommand:
		d.handleNick(session, c)
	case domain.UserCommand:
		d.handleUser(session, c)
	case domain.JoinCommand:
		d.handleJoin(session, c)
	case domain.PrivmsgCommand:
		d.handlePrivmsg(session, c)
	case domain.QuitCommand:
		d.handleQuit(session, c)
	case domain.CapCommand:
		// Capability negotiation is deliberately ignored: no reply,
		// no state change.
	default:
		d.reject(session, errors.ErrUnknownCommand, protocol.CodeUnknownCommand,
			fmt.Sprintf("%s Unknown command", c.Verb()))
	}
}

func (d *Dispatcher) handleNick(session *runtime.Session, cmd domain.NickCommand) {
	if cmd.Name == "" {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeNoNicknameGiven,
			"No nickname given")
		return
	}
	if !domain.ValidNickname(cmd.Name) {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeErroneousNickname,
			fmt.Sprintf("Erroneous nickname %s", cmd.Name))
		return
	}

	oldNickname := session.Nickname()
	if cmd.Name == oldNickname {
		// A no-op change still gets the acknowledgement every other
		// accepted NICK path sends.
		d.reply(session, protocol.ServerNotice(cmd.Name, fmt.Sprintf("Nickname set to %s", cmd.Name)))
		return
	}

	if oldNickname == "" {
		if err := d.registry.Insert(cmd.Name, session); err != nil {
			d.reject(session, err, protocol.CodeNicknameInUse,
				fmt.Sprintf("%s is already in use", cmd.Name))
			return
		}
		session.SetNickname(cmd.Name)
		if d.undoIfClosed(session, cmd.Name) {
			return
		}
		if session.Stage() == domain.Unregistered {
			session.SetStage(domain.NickSet)
		}
		d.reply(session, protocol.ServerNotice(cmd.Name, fmt.Sprintf("Nickname set to %s", cmd.Name)))
		return
	}

	if err := d.registry.Rename(oldNickname, cmd.Name, session); err != nil {
		d.reject(session, err, protocol.CodeNicknameInUse,
			fmt.Sprintf("%s is already in use", cmd.Name))
		return
	}
	session.SetNickname(cmd.Name)
	if d.undoIfClosed(session, cmd.Name) {
		return
	}
	if session.Stage() == domain.Registered {
		// Everybody, the changer included, sees the same notice.
		d.broadcaster.BroadcastAll(protocol.NickLine(oldNickname, cmd.Name))
	} else {
		d.reply(session, protocol.ServerNotice(cmd.Name, fmt.Sprintf("Nickname set to %s", cmd.Name)))
	}
}

func (d *Dispatcher) handleUser(session *runtime.Session, _ domain.UserCommand) {
	switch session.Stage() {
	case domain.Unregistered:
		d.reject(session, errors.ErrNotRegistered, protocol.CodeNotRegistered,
			"Register a nickname first")
	case domain.NickSet:
		session.SetStage(domain.Registered)
		nickname := session.Nickname()
		d.reply(session, protocol.ServerReply(protocol.CodeWelcome, nickname,
			fmt.Sprintf("Welcome to %s, %s", domain.RoomName, nickname)))
		d.reply(session, protocol.JoinLine(nickname))
		d.broadcaster.BroadcastExcept(protocol.JoinLine(nickname), nickname)
		d.replayHistory(session, nickname)
	case domain.Registered:
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeAlreadyRegistered,
			"You may not reregister")
	}
}

func (d *Dispatcher) handleJoin(session *runtime.Session, cmd domain.JoinCommand) {
	if cmd.Channel == "" {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeNeedMoreParams,
			"JOIN needs a channel")
		return
	}
	if cmd.Channel != domain.RoomName {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeNoSuchChannel,
			fmt.Sprintf("No such channel: %s", cmd.Channel))
		return
	}

	nickname := session.Nickname()
	if session.Stage() == domain.Registered {
		// Already a member; re-announce the join.
		d.reply(session, protocol.JoinLine(nickname))
		d.broadcaster.BroadcastExcept(protocol.JoinLine(nickname), nickname)
		return
	}
	d.reply(session, protocol.ServerNotice(nickname,
		fmt.Sprintf("Welcome to %s channel! You will join once registered", domain.RoomName)))
}

func (d *Dispatcher) handlePrivmsg(session *runtime.Session, cmd domain.PrivmsgCommand) {
	if session.Stage() != domain.Registered {
		d.reject(session, errors.ErrNotRegistered, protocol.CodeNotRegistered,
			"You have not registered")
		return
	}
	if cmd.Target != domain.RoomName {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeNoSuchChannel,
			fmt.Sprintf("No such channel: %s", cmd.Target))
		return
	}
	if cmd.Text == "" {
		d.reject(session, errors.ErrInvalidArgument, protocol.CodeNoTextToSend,
			"No text to send")
		return
	}

	nickname := session.Nickname()
	review := d.moderator.Moderate(cmd.Text)
	if len(review.CensoredWords) > 0 {
		d.log.Warn("Censored chat content",
			"author", nickname,
			"words", review.CensoredWords,
			"lang", review.Lang)
	}

	d.broadcaster.BroadcastExcept(protocol.ChatLine(nickname, domain.RoomName, review.Content), nickname)
	d.record(domain.Message{
		ID:        uuid.New(),
		Author:    nickname,
		Content:   review.Content,
		CreatedAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) handleQuit(session *runtime.Session, cmd domain.QuitCommand) {
	reason := cmd.Reason
	if reason == "" {
		reason = defaultQuitReason
	}
	d.reply(session, protocol.ServerNotice(session.Nickname(), "Goodbye"))
	d.Disconnect(session, reason)
}

// Disconnect runs the terminal cleanup transition: close the session,
// free its nickname, and announce the departure. Both QUIT and a raw
// transport drop end up here, and only the first caller does any work.
func (d *Dispatcher) Disconnect(session *runtime.Session, reason string) {
	wasRegistered := session.Stage() == domain.Registered
	if !session.Close() {
		return
	}

	nickname := session.Nickname()
	if nickname != "" {
		d.registry.RemoveIf(nickname, session)
	}
	if wasRegistered && nickname != "" {
		d.broadcaster.BroadcastAll(protocol.QuitLine(nickname, reason))
	}
	d.log.Info("Session closed", "session", session.ID, "nickname", nickname, "reason", reason)
}

// undoIfClosed compensates for a disconnect racing an in-flight NICK.
// Cleanup that ran between the dispatch entry check and the registry
// write never saw the new nickname, so the claim is rolled back here;
// otherwise a closed session would hold the name forever.
func (d *Dispatcher) undoIfClosed(session *runtime.Session, nickname string) bool {
	if session.Stage() != domain.Closed {
		return false
	}
	d.registry.RemoveIf(nickname, session)
	return true
}

// replayHistory catches a freshly registered session up on the recent
// conversation.
func (d *Dispatcher) replayHistory(session *runtime.Session, nickname string) {
	if d.history == nil {
		return
	}
	messages, err := d.history.Recent()
	if err != nil {
		d.log.Error("Failed to load history", "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}
	d.reply(session, protocol.ServerNotice(nickname,
		fmt.Sprintf("Replaying the last %d messages", len(messages))))
	for _, message := range messages {
		d.reply(session, protocol.ChatLine(message.Author, domain.RoomName, message.Content))
	}
}

// record hands a chat message to the history worker without ever
// blocking the dispatch path.
func (d *Dispatcher) record(message domain.Message) {
	if d.messages == nil {
		return
	}
	select {
	case d.messages <- message:
	default:
		d.log.Warn("History channel full, dropping message", "author", message.Author)
	}
}

// reject reports a recoverable command failure: an error reply to the
// originating session and a debug line carrying the error class.
// Nothing here ever aborts the session.
func (d *Dispatcher) reject(session *runtime.Session, cause error, code, text string) {
	d.log.Debug("Command rejected", "nickname", session.Nickname(), "cause", cause, "code", code)
	d.reply(session, protocol.ServerReply(code, session.Nickname(), text))
}

func (d *Dispatcher) reply(session *runtime.Session, line string) {
	session.TrySend(line)
}

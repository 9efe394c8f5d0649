package protocol

import (
	"fmt"

	"minirc/domain"
)

// ServerName prefixes every reply the server originates itself.
const ServerName = "minirc"

// Numeric reply codes. The subset of the classic IRC numerics that the
// dispatcher actually emits; each distinct error condition maps to a
// distinct, stable code.
const (
	CodeWelcome           = "001"
	CodeNoSuchChannel     = "403"
	CodeNoTextToSend      = "412"
	CodeUnknownCommand    = "421"
	CodeNoNicknameGiven   = "431"
	CodeErroneousNickname = "432"
	CodeNicknameInUse     = "433"
	CodeNotRegistered     = "451"
	CodeNeedMoreParams    = "461"
	CodeAlreadyRegistered = "462"
)

// ServerReply builds a ":minirc <code> <target> :<text>" line.
// Sessions without a nickname yet are addressed as "*".
func ServerReply(code, target, text string) string {
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf(":%s %s %s :%s", ServerName, code, target, text)
}

// ServerNotice builds a ":minirc NOTICE <target> :<text>" line.
func ServerNotice(target, text string) string {
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf(":%s NOTICE %s :%s", ServerName, target, text)
}

// ChatLine renders a chat message as seen by other room members.
func ChatLine(nick, target, text string) string {
	return fmt.Sprintf(":%s PRIVMSG %s :%s", nick, target, text)
}

// JoinLine announces a session joining the room.
func JoinLine(nick string) string {
	return fmt.Sprintf(":%s JOIN %s", nick, domain.RoomName)
}

// QuitLine announces a session leaving the server.
func QuitLine(nick, reason string) string {
	return fmt.Sprintf(":%s QUIT :%s", nick, reason)
}

// NickLine announces a nickname change.
func NickLine(oldNick, newNick string) string {
	return fmt.Sprintf(":%s NICK %s", oldNick, newNick)
}

package domain

// Command is one decoded protocol line, ready for dispatch.
type Command interface {
	Verb() string
}

type NickCommand struct {
	Name string
}

func (NickCommand) Verb() string { return "NICK" }

// UserCommand completes registration. The original protocol carries
// username/realname fields; they are accepted and ignored here.
type UserCommand struct {
	Args []string
}

func (UserCommand) Verb() string { return "USER" }

type JoinCommand struct {
	Channel string
}

func (JoinCommand) Verb() string { return "JOIN" }

type PrivmsgCommand struct {
	Target string
	Text   string
}

func (PrivmsgCommand) Verb() string { return "PRIVMSG" }

type QuitCommand struct {
	Reason string
}

func (QuitCommand) Verb() string { return "QUIT" }

// CapCommand is capability negotiation. Deliberately a no-op.
type CapCommand struct {
	Args []string
}

func (CapCommand) Verb() string { return "CAP" }

type UnknownCommand struct {
	Raw string
}

func (c UnknownCommand) Verb() string { return c.Raw }

// Package protocol implements the line grammar of the chat protocol:
// decoding one inbound line into a domain.Command and rendering the
// server/user prefixed lines that go back out.
//
// Framing (line splitting, encoding, flushing) belongs to the transport
// layer; this package only ever sees one decoded UTF-8 line at a time.
package protocol

import (
	"strings"

	"minirc/domain"
)

// Parse decodes a single protocol line. A blank line decodes to nil.
// Parsing never fails hard: anything with an unrecognized verb becomes
// an UnknownCommand so the dispatcher can answer with a proper error
// reply instead of dropping the connection.
func Parse(line string) domain.Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	// Clients may prepend their own ":<prefix> "; the server ignores it.
	if strings.HasPrefix(line, ":") {
		if i := strings.IndexByte(line, ' '); i >= 0 {
			line = strings.TrimLeft(line[i+1:], " ")
		} else {
			return nil
		}
	}

	verb := line
	params := ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb = line[:i]
		params = strings.TrimLeft(line[i+1:], " ")
	}

	args := splitArgs(params)

	switch verb {
	case "NICK":
		return domain.NickCommand{Name: first(args)}
	case "USER":
		return domain.UserCommand{Args: args}
	case "JOIN":
		return domain.JoinCommand{Channel: first(args)}
	case "PRIVMSG":
		cmd := domain.PrivmsgCommand{Target: first(args)}
		if len(args) > 1 {
			cmd.Text = args[1]
		}
		return cmd
	case "QUIT":
		return domain.QuitCommand{Reason: first(args)}
	case "CAP":
		return domain.CapCommand{Args: args}
	default:
		return domain.UnknownCommand{Raw: verb}
	}
}

// splitArgs splits whitespace-separated arguments, keeping a
// ":"-prefixed trailing argument intact, spaces included.
func splitArgs(params string) []string {
	if params == "" {
		return nil
	}
	if strings.HasPrefix(params, ":") {
		return []string{params[1:]}
	}
	if i := strings.Index(params, " :"); i >= 0 {
		return append(strings.Fields(params[:i]), params[i+2:])
	}
	return strings.Fields(params)
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

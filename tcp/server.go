// Package tcp is the transport layer: it accepts connections, frames
// the byte stream into lines, and shuttles lines between each socket
// and its session's outbound queue. The socket is owned here and only
// here; the rest of the system talks to a connection exclusively
// through its session.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"minirc/domain"
	"minirc/errors"
	"minirc/protocol"
	"minirc/runtime"
	"minirc/services"
)

// maxLineLength bounds one protocol line; anything longer aborts the
// offending connection instead of growing buffers without limit.
const maxLineLength = 512

// shutdownGrace bounds how long a connection may take to flush its
// goodbye notice before the socket is closed anyway.
const shutdownGrace = 2 * time.Second

type Server struct {
	log              *slog.Logger
	dispatcher       *services.Dispatcher
	address          string
	outboundCapacity int
	wg               sync.WaitGroup
}

func NewServer(log *slog.Logger, dispatcher *services.Dispatcher, address string, outboundCapacity int) *Server {
	return &Server{
		log:              log,
		dispatcher:       dispatcher,
		address:          address,
		outboundCapacity: outboundCapacity,
	}
}

// Run listens on the configured address and serves until ctx is
// canceled, then waits for every connection goroutine to drain. It
// satisfies the supervised worker contract.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.log.Info("Listening", "address", s.address)
	return s.serve(ctx, listener)
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// handle drives one connection: a writer goroutine drains the session's
// outbound queue to the socket while this goroutine feeds decoded lines
// to the dispatcher. Cleanup is funneled through Dispatcher.Disconnect,
// which is idempotent, so QUIT and a dropped socket cannot double-free
// the session.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	session := runtime.NewSession(s.log, s.outboundCapacity)
	s.log.Info("Connection accepted", "session", session.ID, "remote", conn.RemoteAddr().String())

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(session, conn)
	}()

	// Unblock the read loop when the server shuts down or the session
	// ends; a blocked Scan only wakes up when the socket dies. On
	// shutdown the client gets a goodbye notice first, flushed by the
	// write loop's post-close drain.
	go func() {
		select {
		case <-ctx.Done():
			session.TrySend(protocol.ServerNotice(session.Nickname(), "Server shutting down"))
			s.dispatcher.Disconnect(session, "Server shutting down")
			select {
			case <-writeDone:
			case <-time.After(shutdownGrace):
			}
			_ = conn.Close()
		case <-session.Done():
		}
	}()

	session.TrySend(protocol.ServerNotice("", fmt.Sprintf("Welcome to %s channel!", domain.RoomName)))
	session.TrySend(protocol.ServerNotice("", "Register with NICK <name> followed by USER <name>"))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)
	for scanner.Scan() {
		s.dispatcher.Dispatch(session, scanner.Text())
		if session.Stage() == domain.Closed {
			break
		}
	}
	if err := scanner.Err(); err != nil && session.Stage() != domain.Closed {
		s.log.Debug("Read loop ended", "session", session.ID,
			"error", fmt.Errorf("%w: %v", errors.ErrTransportClosed, err))
	}

	s.dispatcher.Disconnect(session, "Connection closed")
	<-writeDone
}

// writeLoop is the only writer on the socket. After the session closes
// it flushes whatever was already queued (the goodbye notice of a QUIT,
// typically) before returning.
func (s *Server) writeLoop(session *runtime.Session, conn net.Conn) {
	writer := bufio.NewWriter(conn)
	for {
		select {
		case line := <-session.Outbound():
			if err := writeLine(writer, line); err != nil {
				s.log.Debug("Write failed", "session", session.ID,
					"error", fmt.Errorf("%w: %v", errors.ErrTransportClosed, err))
				_ = conn.Close()
				s.dispatcher.Disconnect(session, "Connection closed")
				return
			}
		case <-session.Done():
			for {
				select {
				case line := <-session.Outbound():
					if err := writeLine(writer, line); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func writeLine(writer *bufio.Writer, line string) error {
	if _, err := writer.WriteString(line + "\r\n"); err != nil {
		return err
	}
	return writer.Flush()
}

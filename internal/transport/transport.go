// Package transport carries controller commands over byte streams. TCP
// connections and serial ports both run the same line-oriented Session.
package transport

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Handler answers one raw command line. An error means the command was
// rejected and nothing is written back.
type Handler interface {
	Handle(raw string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(raw string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(raw string) (string, error) { return f(raw) }

// Framing describes how a grammar splits input and decorates replies.
type Framing struct {
	// Terminator ends every inbound command.
	Terminator byte
	// Suffix is appended to every reply that is written.
	Suffix string
	// ReplyOnEmpty writes Suffix even when the reply is empty or rejected.
	ReplyOnEmpty bool
}

// Frame returns the bytes to write for reply, or nil when nothing is sent.
func (f Framing) Frame(reply string) []byte {
	if reply == "" && !f.ReplyOnEmpty {
		return nil
	}
	return []byte(reply + f.Suffix)
}

// Session runs the command loop for one stream.
type Session struct {
	handler Handler
	framing Framing
	logger  *slog.Logger
}

// NewSession binds a handler to a framing.
func NewSession(h Handler, f Framing, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{handler: h, framing: f, logger: logger}
}

// Serve reads terminator-delimited commands from rw until the stream ends,
// answering each one in order. A trailing partial command is dropped.
//
// There is no read deadline: a client that never sends a terminator keeps
// the session parked in Read until the stream is closed.
func (s *Session) Serve(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)
	for {
		line, err := r.ReadString(s.framing.Terminator)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					s.logger.Debug("dropping unterminated command", "raw", line)
				}
				return nil
			}
			return err
		}

		raw := strings.TrimSuffix(line, string(s.framing.Terminator))
		reply, herr := s.handler.Handle(raw)
		if herr != nil {
			reply = ""
		}

		out := s.framing.Frame(reply)
		if out == nil {
			continue
		}
		if _, err := rw.Write(out); err != nil {
			return err
		}
	}
}

// Package streaming defines the envelope protocol used to stream a session
// journal to a remote collector.
package streaming

import (
	"encoding/json"

	"github.com/motorsim/motorsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeCommand      = "command"
	TypeAxisState    = "axis_state"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the collector's reply to start_session and end_session.
// A non-empty Error means the collector refused the message.
type AckMessage struct {
	Type  string `json:"type"` // always "ack"
	For   string `json:"for"`  // the message type being acknowledged
	Error string `json:"error,omitempty"`
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

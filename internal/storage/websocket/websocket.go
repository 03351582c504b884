package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/motorsim/motorsim/pkg/core"
	"github.com/motorsim/motorsim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams the session journal over WebSocket to a collector.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	link *link
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		link: newLink(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.link.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.link.close()
}

// Dropped returns how many messages never reached the collector because the
// outbox was full or the socket failed mid-write.
func (b *Backend) Dropped() uint64 {
	return b.link.dropped.Load()
}

// Reconnects returns how many times the link was re-established.
func (b *Backend) Reconnects() uint64 {
	return b.link.reconnects.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// without waiting.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.link.send(data)
	return nil
}

// StartSession sends the session header and waits for the server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	b.link.setReplay(data)
	return b.link.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err == nil {
		err = b.link.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	}
	b.link.setReplay(nil)

	return err
}

func (b *Backend) RecordCommand(r *core.CommandRecord) error {
	return b.sendEnvelope(streaming.TypeCommand, r)
}

func (b *Backend) RecordAxisState(s *core.AxisState) error {
	return b.sendEnvelope(streaming.TypeAxisState, s)
}

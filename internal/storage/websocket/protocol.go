package websocket

import "github.com/motorsim/motorsim/pkg/streaming"

// Aliases so callers of this package need not import pkg/streaming.
type (
	Envelope            = streaming.Envelope
	AckMessage          = streaming.AckMessage
	StartSessionPayload = streaming.StartSessionPayload
)

const (
	TypeStartSession = streaming.TypeStartSession
	TypeEndSession   = streaming.TypeEndSession
	TypeCommand      = streaming.TypeCommand
	TypeAxisState    = streaming.TypeAxisState
)

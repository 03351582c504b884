// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/motorsim/motorsim/pkg/core"
)

// Backend is the interface all journal implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Journal
	RecordCommand(r *core.CommandRecord) error
	RecordAxisState(s *core.AxisState) error
}

// Exportable is an optional interface for backends that write a transcript
// file when the session ends.
type Exportable interface {
	ExportedFilePath() string
	ExportMetadata() UploadMetadata
}

// UploadMetadata describes an exported transcript to the collector.
type UploadMetadata struct {
	Hostname        string
	Version         string
	StartTime       time.Time
	DurationSeconds float64
	Simulators      []string
	CommandCount    int
}

// Nop discards everything. It stands in when no journal is wanted.
type Nop struct{}

func (Nop) Init() error                             { return nil }
func (Nop) Close() error                            { return nil }
func (Nop) StartSession(*core.Session) error        { return nil }
func (Nop) EndSession() error                       { return nil }
func (Nop) RecordCommand(*core.CommandRecord) error { return nil }
func (Nop) RecordAxisState(*core.AxisState) error   { return nil }

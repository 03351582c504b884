// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/storage"
	"github.com/motorsim/motorsim/pkg/core"
)

// axisKey identifies one axis of one controller
type axisKey struct {
	controller string
	axis       string
}

// AxisRecord groups an axis with its sampled states
type AxisRecord struct {
	Controller string
	Axis       string
	Kind       string
	States     []core.AxisState
}

// Backend keeps the session journal in memory and exports it to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	endTime time.Time

	commands []core.CommandRecord
	axes     map[axisKey]*AxisRecord

	idCounter      uint
	lastExportPath string
	lastExportMeta storage.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		axes: make(map[axisKey]*AxisRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports a session that was never ended
func (b *Backend) Close() error {
	b.mu.RLock()
	open := b.session != nil
	b.mu.RUnlock()
	if open {
		return b.EndSession()
	}
	return nil
}

// StartSession begins a new journal, dropping anything recorded before
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.commands = nil
	b.axes = make(map[axisKey]*AxisRecord)
	b.idCounter = 0
	b.endTime = time.Time{}

	return nil
}

// EndSession finalizes and exports the journal
func (b *Backend) EndSession() error {
	return b.EndSessionAt(time.Now())
}

// EndSessionAt is EndSession with an explicit end time, for replaying
// sessions that already finished.
func (b *Backend) EndSessionAt(end time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session in progress")
	}
	b.endTime = end
	err := b.exportJSON()
	if err == nil {
		b.lastExportMeta = b.exportMetadata()
	}
	b.session = nil
	return err
}

// RecordCommand appends an exchange and assigns its ID
func (b *Backend) RecordCommand(r *core.CommandRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	r.ID = b.idCounter
	b.commands = append(b.commands, *r)
	return nil
}

// RecordAxisState appends a sample to its axis track
func (b *Backend) RecordAxisState(s *core.AxisState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := axisKey{controller: s.Controller, axis: s.Axis}
	rec, ok := b.axes[key]
	if !ok {
		rec = &AxisRecord{Controller: s.Controller, Axis: s.Axis, Kind: s.Kind}
		b.axes[key] = rec
	}
	rec.States = append(rec.States, *s)
	return nil
}

// Commands returns a copy of the journaled exchanges
func (b *Backend) Commands() []core.CommandRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.CommandRecord(nil), b.commands...)
}

// Axes returns the axis tracks ordered by controller then axis
func (b *Backend) Axes() []AxisRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]AxisRecord, 0, len(b.axes))
	for _, rec := range b.axes {
		cp := *rec
		cp.States = append([]core.AxisState(nil), rec.States...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Controller != out[j].Controller {
			return out[i].Controller < out[j].Controller
		}
		return out[i].Axis < out[j].Axis
	})
	return out
}

// ExportedFilePath returns the path of the last export
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata describes the last export
func (b *Backend) ExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}

func (b *Backend) exportMetadata() storage.UploadMetadata {
	meta := storage.UploadMetadata{
		Hostname:        b.session.Hostname,
		Version:         b.session.Version,
		StartTime:       b.session.StartTime,
		DurationSeconds: b.endTime.Sub(b.session.StartTime).Seconds(),
		CommandCount:    len(b.commands),
	}
	for _, sim := range b.session.Simulators {
		meta.Simulators = append(meta.Simulators, sim.Name)
	}
	return meta
}

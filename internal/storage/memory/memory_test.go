package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/storage"
	"github.com/motorsim/motorsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)
var _ storage.Exportable = (*Backend)(nil)

var sessionStart = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newSession() *core.Session {
	return &core.Session{
		StartTime: sessionStart,
		Version:   "0.1.0",
		Hostname:  "bench 01",
		Simulators: []core.SimulatorInfo{
			{Name: "k", Vendor: "kohzu", Model: "200", Transport: "tcp", Endpoint: "127.0.0.1:7001", AxisCount: 2},
		},
	}
}

func TestRecordCommand_AssignsIDs(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(newSession()))

	first := &core.CommandRecord{Keyword: "IDN"}
	second := &core.CommandRecord{Keyword: "RDP"}
	require.NoError(t, b.RecordCommand(first))
	require.NoError(t, b.RecordCommand(second))

	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)
	assert.Len(t, b.Commands(), 2)
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(newSession()))
	require.NoError(t, b.RecordCommand(&core.CommandRecord{Keyword: "IDN"}))
	require.NoError(t, b.RecordAxisState(&core.AxisState{Controller: "k", Axis: "1"}))

	require.NoError(t, b.StartSession(newSession()))
	assert.Empty(t, b.Commands())
	assert.Empty(t, b.Axes())

	r := &core.CommandRecord{Keyword: "STR"}
	require.NoError(t, b.RecordCommand(r))
	assert.Equal(t, uint(1), r.ID)
}

func TestRecordAxisState_GroupsByAxis(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(newSession()))

	for _, s := range []core.AxisState{
		{Controller: "k", Axis: "2", Position: 1},
		{Controller: "k", Axis: "1", Position: 2},
		{Controller: "k", Axis: "1", Position: 3},
		{Controller: "a", Axis: "1", Position: 4},
	} {
		s := s
		require.NoError(t, b.RecordAxisState(&s))
	}

	axes := b.Axes()
	require.Len(t, axes, 3)
	assert.Equal(t, "a", axes[0].Controller)
	assert.Equal(t, "1", axes[1].Axis)
	assert.Len(t, axes[1].States, 2)
	assert.Equal(t, "2", axes[2].Axis)
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.Error(t, b.EndSession())
	assert.NoError(t, b.Close())
}

func recordSample(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.RecordCommand(&core.CommandRecord{
		Time:       sessionStart.Add(1500 * time.Millisecond),
		Controller: "k",
		Raw:        "\x02RDP1/0\r",
		Keyword:    "RDP",
		Params:     []string{"1", "0"},
		Reply:      "C\tRDP1\t0\r\n",
		Outcome:    core.OutcomeOK,
	}))
	require.NoError(t, b.RecordAxisState(&core.AxisState{
		Time:       sessionStart.Add(2 * time.Second),
		Controller: "k",
		Axis:       "1",
		Kind:       "closed",
		Position:   250,
		Command:    500,
		Velocity:   1000,
		Moving:     true,
		Homed:      true,
	}))
}

func TestEndSession_ExportsJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: false})
	require.NoError(t, b.StartSession(newSession()))
	recordSample(t, b)

	require.NoError(t, b.EndSession())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "bench_01_20260301_093000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export TranscriptExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "0.1.0", export.Version)
	require.Len(t, export.Simulators, 1)
	require.Len(t, export.Commands, 1)
	assert.Equal(t, int64(1500), export.Commands[0].OffsetMs)
	assert.Equal(t, "RDP", export.Commands[0].Keyword)
	require.Len(t, export.Axes, 1)
	require.Len(t, export.Axes[0].Samples, 1)
	assert.Equal(t, []any{2000.0, 250.0, 500.0, 1000.0, 1.0, 0.0, 0.0, 1.0}, export.Axes[0].Samples[0])

	meta := b.ExportMetadata()
	assert.Equal(t, "bench 01", meta.Hostname)
	assert.Equal(t, []string{"k"}, meta.Simulators)
	assert.Equal(t, 1, meta.CommandCount)
	assert.Positive(t, meta.DurationSeconds)
}

func TestEndSessionAt_UsesGivenEnd(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(newSession()))

	require.NoError(t, b.EndSessionAt(sessionStart.Add(90*time.Second)))

	data, err := os.ReadFile(b.ExportedFilePath())
	require.NoError(t, err)
	var export TranscriptExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.True(t, export.EndTime.Equal(sessionStart.Add(90*time.Second)))
	assert.Equal(t, 90.0, b.ExportMetadata().DurationSeconds)
}

func TestClose_ExportsGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.StartSession(newSession()))
	recordSample(t, b)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	path := b.ExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export TranscriptExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Len(t, export.Commands, 1)
}

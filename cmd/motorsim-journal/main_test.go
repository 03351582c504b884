package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/config"
	"github.com/motorsim/motorsim/internal/database"
	"github.com/motorsim/motorsim/internal/model"
	"github.com/motorsim/motorsim/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func seedJournal(t *testing.T) (string, *journal, *bytes.Buffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := database.GetSqliteDB(path)
	require.NoError(t, err)
	require.NoError(t, database.Setup(db))

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	older := model.Session{StartTime: start.Add(-time.Hour), Version: "0.9.0"}
	require.NoError(t, db.Create(&older).Error)
	s := model.Session{
		StartTime: start,
		EndTime:   &end,
		Version:   "1.0.0",
		Hostname:  "bench",
		Simulators: []model.Simulator{
			{Name: "stage", Vendor: "kohzu", Model: "200", Transport: "tcp", Endpoint: ":5000", AxisCount: 2},
		},
	}
	require.NoError(t, db.Create(&s).Error)

	require.NoError(t, db.Create(&model.Command{
		SessionID: s.ID, Time: start.Add(time.Second), Controller: "stage", Vendor: "kohzu",
		Raw: "IDN", Keyword: "IDN", Params: datatypes.JSON("[]"), Reply: "C\tIDN0\t200\t1000", Outcome: "ok",
	}).Error)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.Create(&model.AxisSample{
			SessionID: s.ID, Time: start.Add(time.Duration(i) * time.Second),
			Controller: "stage", Axis: "1", Kind: "closed-loop", Position: float64(i),
		}).Error)
	}

	// reopen through the same path the command uses
	db, err = openJournal(path)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return path, &journal{db: db, out: out, logger: logger}, out
}

func TestOpenJournal_MissingFile(t *testing.T) {
	_, err := openJournal(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestListSessions(t *testing.T) {
	_, j, out := seedJournal(t)

	require.NoError(t, j.listSessions())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "SIMULATORS")
	assert.Contains(t, string(lines[1]), "bench")
	assert.Contains(t, string(lines[1]), "stage")
	assert.Contains(t, string(lines[2]), "0.9.0")
}

func TestResolve(t *testing.T) {
	_, j, _ := seedJournal(t)

	got, err := j.resolve([]string{"latest", "1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.0.0", got[0].Version)
	assert.Equal(t, uint(1), got[1].ID)

	_, err = j.resolve(nil)
	assert.Error(t, err)
	_, err = j.resolve([]string{"abc"})
	assert.Error(t, err)
	_, err = j.resolve([]string{"99"})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	_, j, out := seedJournal(t)
	dir := t.TempDir()

	require.NoError(t, j.export([]string{"latest"}, config.MemoryConfig{OutputDir: dir}))

	path := string(bytes.TrimSpace(out.Bytes()))
	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var tr memory.TranscriptExport
	require.NoError(t, json.Unmarshal(data, &tr))

	assert.Equal(t, "1.0.0", tr.Version)
	assert.Equal(t, "bench", tr.Hostname)
	assert.Equal(t, time.Minute, tr.EndTime.Sub(tr.StartTime))
	require.Len(t, tr.Commands, 1)
	assert.Equal(t, "IDN", tr.Commands[0].Keyword)
	assert.Equal(t, int64(1000), tr.Commands[0].OffsetMs)
	require.Len(t, tr.Axes, 1)
	require.Len(t, tr.Simulators, 1)
	assert.Equal(t, "stage", tr.Simulators[0].Name)
}

func TestReduce(t *testing.T) {
	_, j, _ := seedJournal(t)

	require.NoError(t, j.reduce([]string{"latest"}, 5))

	samples, err := model.SamplesForSession(j.db, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 0.0, samples[0].Position)
	assert.Equal(t, 5.0, samples[1].Position)

	// reducing again thins the survivors
	require.NoError(t, j.reduce([]string{"latest"}, 5))
	samples, err = model.SamplesForSession(j.db, 2)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 0.0, samples[0].Position)
}

func TestReduce_KeepTooSmall(t *testing.T) {
	_, j, _ := seedJournal(t)
	assert.Error(t, j.reduce([]string{"latest"}, 1))
}

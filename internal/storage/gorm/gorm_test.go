package gormstorage

import (
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/database"
	"github.com/motorsim/motorsim/internal/model"
	"github.com/motorsim/motorsim/internal/storage"
	"github.com/motorsim/motorsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)

	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInit_RequiresDB(t *testing.T) {
	assert.Error(t, New(Dependencies{}).Init())
}

func TestStartSession_AssignsID(t *testing.T) {
	b := newBackend(t)

	s := &core.Session{
		StartTime:  time.Now(),
		Version:    "0.1.0",
		Simulators: []core.SimulatorInfo{{Name: "k", Vendor: "kohzu", AxisCount: 4}},
	}
	require.NoError(t, b.StartSession(s))
	assert.NotZero(t, s.ID)

	latest, err := model.LatestSession(b.DB())
	require.NoError(t, err)
	assert.Equal(t, s.ID, latest.ID)
	require.Len(t, latest.Simulators, 1)
	assert.Equal(t, "kohzu", latest.Simulators[0].Vendor)
}

func TestRecordCommand_FlushedWithSessionID(t *testing.T) {
	b := newBackend(t)
	s := &core.Session{StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))

	base := time.Now()
	for i, kw := range []string{"IDN", "APS", "RDP"} {
		require.NoError(t, b.RecordCommand(&core.CommandRecord{
			Time:       base.Add(time.Duration(i) * time.Millisecond),
			Controller: "k",
			Keyword:    kw,
			Params:     []string{"1"},
			Outcome:    core.OutcomeOK,
		}))
	}
	require.NoError(t, b.RecordAxisState(&core.AxisState{Time: base, Controller: "k", Axis: "1", Position: 10}))
	assert.Equal(t, 4, b.Pending())

	b.Flush()
	assert.Zero(t, b.Pending())

	rows, err := model.CommandsForSession(b.DB(), s.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "IDN", rows[0].Keyword)
	assert.Equal(t, "RDP", rows[2].Keyword)
	assert.JSONEq(t, `["1"]`, string(rows[0].Params))

	var samples []model.AxisSample
	require.NoError(t, b.DB().Find(&samples).Error)
	require.Len(t, samples, 1)
	assert.Equal(t, s.ID, samples[0].SessionID)
}

func TestEndSession_StampsEndTime(t *testing.T) {
	b := newBackend(t)
	s := &core.Session{StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordCommand(&core.CommandRecord{Time: time.Now(), Keyword: "STP"}))

	require.NoError(t, b.EndSession())

	var row model.Session
	require.NoError(t, b.DB().First(&row, s.ID).Error)
	assert.NotNil(t, row.EndTime)
	assert.Zero(t, b.Pending())
}

func TestClose_FlushesPending(t *testing.T) {
	b := newBackend(t)
	b.SetSessionID(42)
	require.NoError(t, b.RecordCommand(&core.CommandRecord{Time: time.Now(), Keyword: "ORG"}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	rows, err := model.CommandsForSession(b.DB(), 42)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFlush_FailedWriteIsRetried(t *testing.T) {
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour, QueueLimit: 2})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	b.SetSessionID(7)

	require.NoError(t, db.Migrator().DropTable(&model.Command{}))
	for _, kw := range []string{"IDN", "RDP", "APS"} {
		require.NoError(t, b.RecordCommand(&core.CommandRecord{Time: time.Now(), Keyword: kw}))
	}
	assert.Equal(t, uint64(1), b.Dropped())

	b.Flush()
	assert.Equal(t, 2, b.Pending())

	require.NoError(t, database.Setup(db))
	b.Flush()
	assert.Zero(t, b.Pending())

	rows, err := model.CommandsForSession(db, 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "RDP", rows[0].Keyword)
	assert.Equal(t, "APS", rows[1].Keyword)
}

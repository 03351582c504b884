package registry

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/axis"
	"github.com/motorsim/motorsim/internal/dispatcher"
	"github.com/motorsim/motorsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoFrontend splits on spaces and answers ECHO with its params.
type echoFrontend struct {
	axes *AxisSet
}

func (f *echoFrontend) Vendor() string { return "echo" }

func (f *echoFrontend) Parse(raw string) (dispatcher.Event, error) {
	fields := strings.Fields(raw)
	if fields[0] == "!" {
		return dispatcher.Event{}, fmt.Errorf("%w: bang", dispatcher.ErrMalformedFrame)
	}
	return dispatcher.Event{Keyword: fields[0], Params: fields[1:]}, nil
}

func (f *echoFrontend) Register(d *dispatcher.Dispatcher) {
	d.Register("ECHO", func(e dispatcher.Event) (string, error) {
		return strings.Join(e.Params, ","), nil
	})
	d.Register("FAIL", func(e dispatcher.Event) (string, error) {
		return "ignored", dispatcher.ErrUnknownAxis
	})
}

func (f *echoFrontend) Axes() []core.AxisState {
	if f.axes == nil {
		return nil
	}
	return f.axes.States("echo1", time.Time{})
}

type memRecorder struct {
	records []*core.CommandRecord
	err     error
}

func (r *memRecorder) RecordCommand(rec *core.CommandRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func newEcho(t *testing.T, name string, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(name, &echoFrontend{}, opts...)
	require.NoError(t, err)
	return c
}

func TestController_Handle(t *testing.T) {
	rec := &memRecorder{}
	c := newEcho(t, "echo1", WithRecorder(rec))

	reply, err := c.Handle("ECHO a b")
	require.NoError(t, err)
	assert.Equal(t, "a,b", reply)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "echo1", r.Controller)
	assert.Equal(t, "echo", r.Vendor)
	assert.Equal(t, "ECHO", r.Keyword)
	assert.Equal(t, []string{"a", "b"}, r.Params)
	assert.Equal(t, "a,b", r.Reply)
	assert.Equal(t, core.OutcomeOK, r.Outcome)
}

func TestController_RejectedCommandsReplyEmpty(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"! x", dispatcher.ErrMalformedFrame},
		{"NOPE 1", dispatcher.ErrUnsupportedKeyword},
		{"FAIL", dispatcher.ErrUnknownAxis},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := &memRecorder{}
			c := newEcho(t, "echo1", WithRecorder(rec))

			reply, err := c.Handle(tt.raw)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, reply)
			assert.Empty(t, c.Receive(tt.raw))

			require.Len(t, rec.records, 2)
			assert.Equal(t, core.OutcomeRejected, rec.records[0].Outcome)
			assert.NotEmpty(t, rec.records[0].Error)
			assert.Empty(t, rec.records[0].Reply)
		})
	}
}

func TestController_BlankLineIgnored(t *testing.T) {
	rec := &memRecorder{}
	c := newEcho(t, "echo1", WithRecorder(rec))

	reply, err := c.Handle("  \r\n")
	assert.NoError(t, err)
	assert.Empty(t, reply)
	assert.Empty(t, rec.records)
}

func TestController_RecorderErrorDoesNotFailCommand(t *testing.T) {
	c := newEcho(t, "echo1", WithRecorder(&memRecorder{err: errors.New("disk full")}))

	reply, err := c.Handle("ECHO z")
	assert.NoError(t, err)
	assert.Equal(t, "z", reply)
}

func TestController_Keywords(t *testing.T) {
	c := newEcho(t, "echo1")
	assert.Equal(t, []string{"ECHO", "FAIL"}, c.Keywords())
	assert.Equal(t, "echo", c.Vendor())
	assert.Equal(t, "echo1", c.Name())
}

func TestRegistry(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(newEcho(t, "zeta")))
	require.NoError(t, r.Add(newEcho(t, "alpha")))
	assert.Error(t, r.Add(newEcho(t, "alpha")))

	assert.Equal(t, 2, r.Len())

	var names []string
	for _, c := range r.Controllers() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	c, ok := r.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, "zeta", c.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAxisSet_OrderAndDuplicates(t *testing.T) {
	set, err := NewAxisSet(
		axis.New(axis.Config{ID: 3}),
		axis.New(axis.Config{ID: 1}),
		axis.New(axis.Config{ID: 2, Name: "theta"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	var ids []int
	for _, a := range set.All() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []int{1, 2, 3}, ids)

	a, ok := set.Get(2)
	require.True(t, ok)
	assert.Equal(t, "theta", a.Name())

	_, err = NewAxisSet(axis.New(axis.Config{ID: 1}), axis.New(axis.Config{ID: 1}))
	assert.Error(t, err)
}

func TestAxisSet_TickAndStates(t *testing.T) {
	set, err := NewAxisSet(axis.New(axis.Config{ID: 1, ServoOn: true}))
	require.NoError(t, err)

	a, _ := set.Get(1)
	a.MoveAbsolute(50)
	set.Tick(10 * time.Millisecond)

	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	states := set.States("kohzu1", now)
	require.Len(t, states, 1)
	s := states[0]
	assert.Equal(t, "kohzu1", s.Controller)
	assert.Equal(t, "1", s.Axis)
	assert.Equal(t, now, s.Time)
	assert.Equal(t, 10.0, s.Position)
	assert.Equal(t, 50.0, s.Command)
	assert.True(t, s.Moving)
	assert.False(t, s.InPosition)
}

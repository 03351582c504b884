package sharedbuf

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/protocol/pmac"
	"github.com/motorsim/motorsim/internal/registry"
	"github.com/motorsim/motorsim/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Layout(t *testing.T) {
	assert.Equal(t, 4168, RecordSize)

	b := Record{
		Control:      CommandPending,
		Status:       0x80,
		Length:       0x0102,
		Command:      "#1?",
		ReplyControl: ReplyCR,
		Reply:        "000000000001",
	}.Encode()

	require.Len(t, b, RecordSize)
	assert.Equal(t, byte(0x01), b[3740])
	assert.Equal(t, byte(0x80), b[3741])
	assert.Equal(t, uint16(0x0102), binary.LittleEndian.Uint16(b[3742:]))
	assert.Equal(t, "#1?", string(b[3744:3747]))
	assert.Equal(t, byte(0), b[3747])
	assert.Equal(t, ReplyCR, b[3905])
	assert.Equal(t, "000000000001", string(b[3910:3922]))

	for i := 0; i < OffsetControl; i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d outside the record fields is %#x", i, b[i])
		}
	}
}

func TestRecord_DecodeRoundTrip(t *testing.T) {
	in := Record{Control: CommandPending, Length: 5, Command: "TYPE", ReplyControl: ReplyACK}
	out, err := Decode(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, out.Pending())
}

func TestRecord_TruncatesToLeaveTerminator(t *testing.T) {
	r := Record{Command: strings.Repeat("x", 500), Reply: strings.Repeat("y", 500)}
	out, err := Decode(r.Encode())
	require.NoError(t, err)
	assert.Len(t, out.Command, CommandSize-1)
	assert.Len(t, out.Reply, ReplySize-1)
}

func TestDecode_ShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, 100))
	assert.Error(t, err)
}

func TestSubmitCommand_TooLong(t *testing.T) {
	assert.Error(t, SubmitCommand(NewMemory(), strings.Repeat("I", CommandSize)))
}

func TestPoller_ReplyCodes(t *testing.T) {
	h := transport.HandlerFunc(func(raw string) (string, error) {
		switch raw {
		case "VALUE":
			return "42", nil
		case "BAD":
			return "", errors.New("unsupported")
		default:
			return "", nil
		}
	})

	tests := []struct {
		name      string
		command   string
		wantCode  byte
		wantReply string
	}{
		{"empty reply acknowledges", "DO", ReplyACK, ""},
		{"value reply", "VALUE", ReplyCR, "42"},
		{"rejected command", "BAD", ReplyCMDERR, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewMemory()
			p := NewPoller(buf, h, 0, nil)

			_, _, ok, err := ReadReply(buf)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, SubmitCommand(buf, tt.command))
			handled, err := p.Poll()
			require.NoError(t, err)
			assert.True(t, handled)

			code, reply, ok, err := ReadReply(buf)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantReply, reply)

			rec, err := buf.Load()
			require.NoError(t, err)
			assert.False(t, rec.Pending())
			assert.Empty(t, rec.Command)
		})
	}
}

func TestPoller_BlankCommandGetsNoReply(t *testing.T) {
	for _, cmd := range []string{"", "   "} {
		calls := 0
		buf := NewMemory()
		p := NewPoller(buf, transport.HandlerFunc(func(string) (string, error) {
			calls++
			return "", nil
		}), 0, nil)

		require.NoError(t, SubmitCommand(buf, cmd))
		handled, err := p.Poll()
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Zero(t, calls)

		rec, err := buf.Load()
		require.NoError(t, err)
		assert.False(t, rec.Pending())
		assert.Zero(t, rec.ReplyControl)
		assert.Empty(t, rec.Reply)

		_, _, ok, err := ReadReply(buf)
		require.NoError(t, err)
		assert.False(t, ok, "no reply for %q", cmd)

		handled, err = p.Poll()
		require.NoError(t, err)
		assert.False(t, handled)
	}
}

func TestPoller_IdleWithoutPendingBit(t *testing.T) {
	calls := 0
	buf := NewMemory()
	require.NoError(t, buf.Store(Record{Command: "TYPE"}))
	p := NewPoller(buf, transport.HandlerFunc(func(string) (string, error) {
		calls++
		return "", nil
	}), 0, nil)

	handled, err := p.Poll()
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Zero(t, calls)
}

func newPMAC(t *testing.T) (*pmac.Controller, *registry.Controller) {
	t.Helper()
	sim := pmac.New(pmac.Config{})
	c, err := registry.NewController("pmac", sim)
	require.NoError(t, err)
	return sim, c
}

func exchange(t *testing.T, buf Buffer, p *Poller, cmd string) (byte, string) {
	t.Helper()
	require.NoError(t, SubmitCommand(buf, cmd))
	_, err := p.Poll()
	require.NoError(t, err)
	code, reply, ok, err := ReadReply(buf)
	require.NoError(t, err)
	require.True(t, ok)
	return code, reply
}

func TestPoller_PMACSession(t *testing.T) {
	sim, c := newPMAC(t)
	buf := NewMemory()
	p := NewPoller(buf, c, 0, nil)

	code, reply := exchange(t, buf, p, "TYPE")
	assert.Equal(t, ReplyCR, code)
	assert.Equal(t, "SIMULATION", reply)

	code, reply = exchange(t, buf, p, "I122")
	assert.Equal(t, ReplyCR, code)
	assert.Equal(t, "32", reply)

	code, _ = exchange(t, buf, p, "#1 I122=64 J=10")
	assert.Equal(t, ReplyACK, code)
	iv, err := sim.IVar(122)
	require.NoError(t, err)
	assert.Equal(t, "64", iv)

	for i := 0; i < 200; i++ {
		sim.Tick(10 * time.Millisecond)
	}
	code, reply = exchange(t, buf, p, "M162")
	assert.Equal(t, ReplyCR, code)
	assert.Equal(t, "320.0", reply)

	code, reply = exchange(t, buf, p, "#1?")
	assert.Equal(t, ReplyCR, code)
	assert.Equal(t, "000000000001", reply)

	code, reply = exchange(t, buf, p, "garbage")
	assert.Equal(t, ReplyCMDERR, code)
	assert.Empty(t, reply)
}

func TestPoller_StartStop(t *testing.T) {
	_, c := newPMAC(t)
	buf := NewMemory()
	p := NewPoller(buf, c, time.Millisecond, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	require.NoError(t, SubmitCommand(buf, "VERSION"))
	require.Eventually(t, func() bool {
		code, reply, ok, err := ReadReply(buf)
		return err == nil && ok && code == ReplyCR && reply == "V1.0"
	}, 2*time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
}

func TestMapped_SharedBetweenMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpram")

	host, err := OpenMapped(path)
	require.NoError(t, err)
	defer host.Close()

	sim, err := OpenMapped(path)
	require.NoError(t, err)
	defer sim.Close()

	_, c := newPMAC(t)
	p := NewPoller(sim, c, 0, nil)

	require.NoError(t, SubmitCommand(host, "#2J/"))
	handled, err := p.Poll()
	require.NoError(t, err)
	assert.True(t, handled)

	code, _, ok, err := ReadReply(host)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ReplyACK, code)

	require.NoError(t, sim.Close())
	require.NoError(t, sim.Close())
	_, err = sim.Load()
	assert.Error(t, err)
}

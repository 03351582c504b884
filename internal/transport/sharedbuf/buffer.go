package sharedbuf

import (
	"fmt"
	"sync"
)

// Buffer is a shared region holding one Record.
type Buffer interface {
	Load() (Record, error)
	Store(r Record) error
	Close() error
}

// Memory is an in-process Buffer.
type Memory struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemory returns a zeroed region.
func NewMemory() *Memory {
	return &Memory{buf: make([]byte, RecordSize)}
}

func (m *Memory) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Decode(m.buf)
}

func (m *Memory) Store(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.buf, r.Encode())
	return nil
}

func (m *Memory) Close() error { return nil }

// SubmitCommand posts cmd with the pending bit set, as the host side does.
func SubmitCommand(b Buffer, cmd string) error {
	if len(cmd) >= CommandSize {
		return fmt.Errorf("command is %d bytes, limit %d", len(cmd), CommandSize-1)
	}
	return b.Store(Record{
		Control: CommandPending,
		Length:  uint16(len(cmd)),
		Command: cmd,
	})
}

// ReadReply returns the reply code and text once the pending bit has been
// cleared. ok is false while the command is still outstanding.
func ReadReply(b Buffer) (code byte, reply string, ok bool, err error) {
	r, err := b.Load()
	if err != nil {
		return 0, "", false, err
	}
	if r.Pending() || r.ReplyControl == 0 {
		return 0, "", false, nil
	}
	return r.ReplyControl, r.Reply, true, nil
}

// Package sharedbuf emulates a dual-port RAM ASCII mailbox: a fixed binary
// record polled for new commands and rewritten with the reply.
package sharedbuf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Record layout, byte offsets from the start of the shared region.
const (
	OffsetControl      = 0x0E9C
	OffsetStatus       = 0x0E9D
	OffsetLength       = 0x0E9E
	OffsetCommand      = 0x0EA0
	OffsetReplyControl = 0x0F41
	OffsetReply        = 0x0F46

	CommandSize = 160
	ReplySize   = 258
	RecordSize  = OffsetReply + ReplySize
)

// Control bits and reply codes.
const (
	CommandPending byte = 0x01

	ReplyCMDERR byte = 0x03
	ReplyACK    byte = 0x06
	ReplyCR     byte = 0x0D
)

// Record is the decoded mailbox.
type Record struct {
	Control      byte
	Status       byte
	Length       uint16
	Command      string
	ReplyControl byte
	Reply        string
}

// Pending reports whether a new command is waiting.
func (r Record) Pending() bool {
	return r.Control&CommandPending != 0
}

// Encode renders the whole region. Bytes outside the fields are zero and
// strings longer than their field are truncated to leave a NUL.
func (r Record) Encode() []byte {
	b := make([]byte, RecordSize)
	b[OffsetControl] = r.Control
	b[OffsetStatus] = r.Status
	binary.LittleEndian.PutUint16(b[OffsetLength:], r.Length)
	copy(b[OffsetCommand:OffsetCommand+CommandSize-1], r.Command)
	b[OffsetReplyControl] = r.ReplyControl
	copy(b[OffsetReply:OffsetReply+ReplySize-1], r.Reply)
	return b
}

// Decode reads a record from the start of b.
func Decode(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("record needs %d bytes, have %d", RecordSize, len(b))
	}
	return Record{
		Control:      b[OffsetControl],
		Status:       b[OffsetStatus],
		Length:       binary.LittleEndian.Uint16(b[OffsetLength:]),
		Command:      cstring(b[OffsetCommand : OffsetCommand+CommandSize]),
		ReplyControl: b[OffsetReplyControl],
		Reply:        cstring(b[OffsetReply : OffsetReply+ReplySize]),
	}, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

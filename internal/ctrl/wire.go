package ctrl

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies a well-formed request/reply record (spec.md §6:
// "magic 0x03091969 or equivalent constant").
const Magic uint32 = 0x03091969

// DataLen is the size of a record's opaque payload area.
const DataLen = 384

// Record is the fixed-size wire record both requests and replies use.
// All fields are fixed width so it can be read/written in one
// encoding/binary pass, mirroring original_source/src/api.c's
// `struct init_request` framing described in spec.md §6.
type Record struct {
	Magic     uint32
	Cmd       Cmd
	Runlevel  uint8
	_         [2]byte // reserved, keeps the struct 4-byte aligned
	SleepUsec uint32
	Len       uint16
	_         [2]byte // reserved
	Data      [DataLen]byte
}

// NewRequest builds a Record for cmd with data copied into the
// payload area (truncated to DataLen, matching the C struct's fixed
// buffer semantics).
func NewRequest(cmd Cmd, runlevel uint8, data []byte) Record {
	r := Record{Magic: Magic, Cmd: cmd, Runlevel: runlevel}
	n := copy(r.Data[:], data)
	r.Len = uint16(n)
	return r
}

// Encode serialises r in wire order.
func (r Record) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a wire record from b, validating the magic number and
// the exact record length (spec.md §7: bad magic or wrong length
// closes the connection without affecting the supervisor).
func Decode(b []byte) (Record, error) {
	var r Record
	if len(b) != RecordSize {
		return r, fmt.Errorf("ctrl: wrong record length: got %d want %d", len(b), RecordSize)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r); err != nil {
		return r, err
	}
	if r.Magic != Magic {
		return r, fmt.Errorf("ctrl: bad magic %#x", r.Magic)
	}
	return r, nil
}

// RecordSize is the on-wire size of Record.
var RecordSize = binary.Size(Record{})

// Payload returns the meaningful prefix of the data area.
func (r Record) Payload() []byte {
	n := int(r.Len)
	if n > len(r.Data) {
		n = len(r.Data)
	}
	return r.Data[:n]
}

// Reply builds a reply record whose Cmd slot is ACK (ok) or NACK,
// optionally carrying its own payload (some
// commands, e.g. SVC_QUERY, return data alongside status).
func Reply(ok bool, data []byte) Record {
	cmd := CmdNACK
	if ok {
		cmd = CmdACK
	}
	return NewRequest(cmd, 0, data)
}

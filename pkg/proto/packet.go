package proto

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

const (
	OpInit Opcode = 'I'
	OpLoad Opcode = 'L'
	OpNext Opcode = 'N'
	OpShow Opcode = 'S'
)

// LoadHeaderSize covers the opcode, the u16 chunk length and the u24
// cumulative length.
const LoadHeaderSize = 6

// MaxPacketSize is the largest frame a Load can describe.
const MaxPacketSize = LoadHeaderSize + 1<<16 - 1

// MaxCumulative is the largest value the 3-byte cumulative field can carry.
const MaxCumulative = 1<<24 - 1

func (o Opcode) Known() bool {
	switch o {
	case OpInit, OpLoad, OpNext, OpShow:
		return true
	}
	return false
}

func (o Opcode) String() string {
	switch o {
	case OpInit:
		return "init"
	case OpLoad:
		return "load"
	case OpNext:
		return "next"
	case OpShow:
		return "show"
	}
	return fmt.Sprintf("unknown(%#02x)", byte(o))
}

// Packet is a classified burst. Raw holds the framed packet bytes, which is
// what gets persisted; bytes trailing the frame are dropped.
type Packet struct {
	Op  Opcode
	Raw []byte

	Selector uint8

	Size  uint16
	Total uint32
	Chunk []byte
}

// Accumulate validates the declared cumulative length against the bytes
// received so far and returns the new running total.
func (p Packet) Accumulate(received uint32) (uint32, error) {
	next := received + uint32(p.Size)
	if next != p.Total {
		return received, ErrCumulative
	}
	return next, nil
}

// Decode classifies the buffered burst. Unknown opcodes are returned without
// error; callers ignore them.
func Decode(b *Buffer) (Packet, error) {
	first, err := b.Byte(0)
	if err != nil {
		return Packet{}, ErrEmpty
	}

	p := Packet{Op: Opcode(first)}
	switch p.Op {
	case OpInit:
		sel, err := b.Byte(1)
		if err != nil {
			return p, ErrTruncated
		}
		p.Selector = sel
		p.Raw = b.Bytes()[:2]
	case OpLoad:
		size, err := b.Word(1)
		if err != nil {
			return p, ErrTruncated
		}
		total, err := b.N3(3)
		if err != nil {
			return p, ErrTruncated
		}
		p.Size, p.Total = size, total
		end := LoadHeaderSize + int(size)
		if end > b.Len() {
			return p, ErrChunkLength
		}
		p.Raw = b.Bytes()[:end]
		p.Chunk = p.Raw[LoadHeaderSize:]
	case OpNext, OpShow:
		p.Raw = b.Bytes()[:1]
	default:
		p.Raw = b.Bytes()
	}
	return p, nil
}

// DecodeBytes decodes p without copying it.
func DecodeBytes(p []byte) (Packet, error) {
	return Decode(View(p))
}

// View wraps p as a full Buffer.
func View(p []byte) *Buffer {
	return &Buffer{buf: p, n: len(p)}
}

func InitPacket(selector uint8) []byte {
	return []byte{byte(OpInit), selector}
}

// LoadPacket frames chunk; total is the cumulative length including chunk.
func LoadPacket(chunk []byte, total uint32) []byte {
	b := make([]byte, LoadHeaderSize+len(chunk))
	b[0] = byte(OpLoad)
	binary.LittleEndian.PutUint16(b[1:], uint16(len(chunk)))
	putN3(b[3:], total)
	copy(b[LoadHeaderSize:], chunk)
	return b
}

func NextPacket() []byte {
	return []byte{byte(OpNext)}
}

func ShowPacket() []byte {
	return []byte{byte(OpShow)}
}

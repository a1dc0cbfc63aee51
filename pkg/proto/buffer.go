package proto

import (
	"encoding/binary"
	"io"
)

const DefaultCapacity = 4096

// Buffer accumulates one burst. The backing array is allocated once and
// reused; Reset only rewinds the write index.
type Buffer struct {
	buf []byte
	n   int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]byte, capacity)}
}

func (b *Buffer) Reset() {
	b.n = 0
}

func (b *Buffer) Cap() int {
	return len(b.buf)
}

func (b *Buffer) Len() int {
	return b.n
}

func (b *Buffer) Free() int {
	return len(b.buf) - b.n
}

// Bytes aliases the buffer; it is only valid until the next Reset.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Append copies p in whole or not at all.
func (b *Buffer) Append(p ...byte) error {
	if len(p) > b.Free() {
		return ErrOverflow
	}
	b.n += copy(b.buf[b.n:], p)
	return nil
}

// ReadFrom performs a single Read into the free space. A full buffer reports
// ErrOverflow without reading.
func (b *Buffer) ReadFrom(r io.Reader) (int, error) {
	if b.Free() == 0 {
		return 0, ErrOverflow
	}
	n, err := r.Read(b.buf[b.n:])
	b.n += n
	return n, err
}

func (b *Buffer) Byte(off int) (byte, error) {
	if off < 0 || off >= b.n {
		return 0, ErrShortBuffer
	}
	return b.buf[off], nil
}

// Word reads a little-endian uint16 at off.
func (b *Buffer) Word(off int) (uint16, error) {
	if off < 0 || off+2 > b.n {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint16(b.buf[off:]), nil
}

// N3 reads a 3-byte little-endian value at off.
func (b *Buffer) N3(off int) (uint32, error) {
	if off < 0 || off+3 > b.n {
		return 0, ErrShortBuffer
	}
	return getN3(b.buf[off:]), nil
}

func getN3(p []byte) uint32 {
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
}

func putN3(p []byte, v uint32) {
	p[0] = byte(v)
	p[1] = byte(v >> 8)
	p[2] = byte(v >> 16)
}

package proto

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"
)

// Source yields one burst per call. The returned slice is only valid until
// the next call.
type Source interface {
	PollBurst(ctx context.Context) ([]byte, error)
}

func NewLive(r io.Reader, capacity int) *Live {
	return &Live{
		r:        r,
		buf:      NewBuffer(capacity),
		Interval: time.Millisecond,
	}
}

// Live drains a link whose Read returns 0 bytes (or a timeout error) once
// nothing more is buffered, which is how a serial port with a read timeout
// behaves.
type Live struct {
	r       io.Reader
	buf     *Buffer
	pending error

	// Interval is the pause between empty reads while waiting for the
	// first byte of a burst.
	Interval time.Duration
}

func (s *Live) PollBurst(ctx context.Context) ([]byte, error) {
	if err := s.pending; err != nil {
		s.pending = nil
		return nil, err
	}

	s.buf.Reset()

	for s.buf.Len() == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.buf.ReadFrom(s.r)
		if err != nil && !os.IsTimeout(err) {
			if n == 0 {
				return nil, err
			}
			s.pending = err
			return s.buf.Bytes(), nil
		}
		if n == 0 {
			if err := sleep(ctx, s.Interval); err != nil {
				return nil, err
			}
		}
	}

	for {
		if s.buf.Free() == 0 {
			if s.overflowed() {
				return nil, ErrOverflow
			}
			return s.buf.Bytes(), nil
		}
		n, err := s.buf.ReadFrom(s.r)
		if err != nil && !os.IsTimeout(err) {
			s.pending = err
			return s.buf.Bytes(), nil
		}
		if n == 0 {
			return s.buf.Bytes(), nil
		}
	}
}

// overflowed checks for bytes beyond capacity and discards the rest of the
// burst when there are any.
func (s *Live) overflowed() bool {
	var scratch [256]byte
	over := false
	for {
		n, err := s.r.Read(scratch[:])
		if n > 0 {
			over = true
		}
		if err != nil && !os.IsTimeout(err) {
			s.pending = err
			return over
		}
		if n == 0 {
			return over
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func NewReplay(r io.Reader, capacity int) *Replay {
	return &Replay{r: bufio.NewReader(r), buf: NewBuffer(capacity)}
}

// Replay reads a persisted packet stream back one packet at a time, framing
// each packet from its own header.
type Replay struct {
	r   *bufio.Reader
	buf *Buffer
}

func (s *Replay) PollBurst(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.buf.Reset()
	op, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}
	_ = s.buf.Append(op)

	switch Opcode(op) {
	case OpInit:
		err = s.fill(1)
	case OpLoad:
		if err = s.fill(LoadHeaderSize - 1); err == nil && s.buf.Len() == LoadHeaderSize {
			size, _ := s.buf.Word(1)
			err = s.fill(int(size))
		}
	}
	if err != nil {
		return nil, err
	}
	return s.buf.Bytes(), nil
}

// fill reads up to n more bytes. Hitting the end of the stream is not an
// error here: the short packet is handed on and fails validation.
func (s *Replay) fill(n int) error {
	if n > s.buf.Free() {
		_, _ = s.r.Discard(n)
		return ErrOverflow
	}
	m, err := io.ReadFull(s.r, s.buf.buf[s.buf.n:s.buf.n+n])
	s.buf.n += m
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}

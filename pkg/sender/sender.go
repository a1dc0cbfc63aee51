// Package sender is the host side of the link: it frames captures and pushes
// them packet by packet, waiting for each reply.
package sender

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"epaperd/pkg/proto"
)

const DefaultChunkSize = 1024

var (
	ErrNoReply  = errors.New("no reply")
	ErrRejected = errors.New("packet rejected")
)

func New(link io.ReadWriter, opts ...Option) *Sender {
	s := &Sender{
		link:    link,
		log:     zap.NewNop(),
		timeout: 2 * time.Second,
		retries: 1,
		chunk:   DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Sender struct {
	link    io.ReadWriter
	log     *zap.Logger
	bar     *progressbar.ProgressBar
	timeout time.Duration
	retries int
	chunk   int
}

// Report counts what a push did.
type Report struct {
	Packets  int
	Bytes    int
	Retried  int
	Rejected int
	Skipped  int
}

// Push sends a recorded slot stream. Bytes that do not start a known packet
// are skipped since the device would not answer them.
func (s *Sender) Push(ctx context.Context, stream io.Reader) (Report, error) {
	var rep Report
	src := proto.NewReplay(stream, proto.MaxPacketSize)

	for {
		pkt, err := src.PollBurst(ctx)
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			return rep, err
		}

		if !proto.Opcode(pkt[0]).Known() {
			rep.Skipped++
			continue
		}

		if err := s.send(ctx, pkt, &rep); err != nil {
			return rep, err
		}
	}
}

// Send frames a capture from raw channel data and pushes it.
func (s *Sender) Send(ctx context.Context, selector uint8, first, second []byte) (Report, error) {
	var rep Report
	for _, pkt := range Capture(selector, first, second, s.chunk) {
		if err := s.send(ctx, pkt, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (s *Sender) send(ctx context.Context, pkt []byte, rep *Report) error {
	op := proto.Opcode(pkt[0])
	for attempt := 0; ; attempt++ {
		if _, err := s.link.Write(pkt); err != nil {
			return errors.Wrapf(err, "write %s", op)
		}

		reply, err := s.await(ctx)
		if err != nil {
			return errors.Wrapf(err, "await %s", op)
		}

		if reply == proto.ReplyOk {
			break
		}
		if attempt >= s.retries {
			rep.Rejected++
			s.log.With(zap.Stringer("op", op), zap.Int("len", len(pkt))).Warn("rejected")
			if op == proto.OpInit {
				return errors.Wrapf(ErrRejected, "%s", op)
			}
			break
		}
		rep.Retried++
	}

	rep.Packets++
	rep.Bytes += len(pkt)
	if s.bar != nil {
		_ = s.bar.Add(len(pkt))
	}
	s.log.With(zap.Stringer("op", op), zap.Int("len", len(pkt))).Debug("sent")
	return nil
}

// await reads until a full reply arrives. Reads returning nothing count
// against the timeout, as a serial port with a read timeout does.
func (s *Sender) await(ctx context.Context) (proto.Reply, error) {
	deadline := time.Now().Add(s.timeout)
	var got []byte
	buf := make([]byte, 16)

	for {
		if err := ctx.Err(); err != nil {
			return proto.ReplyNone, err
		}

		n, err := s.link.Read(buf)
		got = append(got, buf[:n]...)
		switch {
		case bytes.HasSuffix(got, proto.ReplyOk.Bytes()):
			return proto.ReplyOk, nil
		case bytes.HasSuffix(got, proto.ReplyError.Bytes()):
			return proto.ReplyError, nil
		}

		if err != nil && !errors.Is(err, io.EOF) {
			return proto.ReplyNone, err
		}
		if n == 0 && time.Now().After(deadline) {
			return proto.ReplyNone, errors.Wrapf(ErrNoReply, "after %s", s.timeout)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// Capture frames first and second as an Init, Load..., Next, Load..., Show
// packet sequence. second may be empty for single channel panels.
func Capture(selector uint8, first, second []byte, chunk int) [][]byte {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if chunk > proto.MaxPacketSize-proto.LoadHeaderSize {
		chunk = proto.MaxPacketSize - proto.LoadHeaderSize
	}

	pkts := [][]byte{proto.InitPacket(selector)}
	var total uint32
	load := func(data []byte) {
		for off := 0; off < len(data); off += chunk {
			end := off + chunk
			if end > len(data) {
				end = len(data)
			}
			total += uint32(end - off)
			pkts = append(pkts, proto.LoadPacket(data[off:end], total))
		}
	}

	load(first)
	pkts = append(pkts, proto.NextPacket())
	load(second)
	return append(pkts, proto.ShowPacket())
}

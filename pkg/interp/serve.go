package interp

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"epaperd/pkg/proto"
)

// Serve runs the dispatch loop until the source ends or ctx is done. Replies
// are written to w for live sessions only. A replay that reaches the end of
// its slot returns nil.
func (it *Interpreter) Serve(ctx context.Context, s *Session, src proto.Source, w io.Writer) error {
	for {
		burst, err := src.PollBurst(ctx)
		if err != nil {
			if errors.Is(err, proto.ErrOverflow) {
				it.log.With(zap.String("session", s.ID.String()), zap.Error(err)).Warn("burst discarded")
				if err := it.reply(s, w, proto.ReplyError); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, io.EOF) && !s.live() {
				return nil
			}
			return err
		}

		out, err := it.Handle(s, burst)
		if err != nil {
			it.log.With(zap.String("session", s.ID.String()), zap.Stringer("op", out.Op), zap.Error(err)).Debug("packet fault")
		}

		if err := it.reply(s, w, out.Reply); err != nil {
			return err
		}
	}
}

func (it *Interpreter) reply(s *Session, w io.Writer, r proto.Reply) error {
	if !s.live() || w == nil || r == proto.ReplyNone {
		return nil
	}
	if _, err := w.Write(r.Bytes()); err != nil {
		return errors.Wrap(err, "reply")
	}
	return nil
}

// Replay renders the stored slot at index without touching the store's
// write side.
func (it *Interpreter) Replay(ctx context.Context, index uint16) error {
	f, err := it.store.Read(index)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	s := NewSession(ModeReplay)
	it.log.With(zap.String("session", s.ID.String()), zap.String("slot", f.Name())).Info("replay")
	return it.Serve(ctx, s, proto.NewReplay(f, it.capacity), nil)
}

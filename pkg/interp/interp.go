package interp

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epaperd/pkg/idle"
	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

var ErrUnknownDisplay = errors.New("unknown display type")

// Store is the slot storage the interpreter records into and replays from.
type Store interface {
	Open() error
	Write(p []byte) error
	Close() error
	Shutdown() error
	Read(index uint16) (afero.File, error)
}

func New(st Store, r proto.Renderer, opts ...Option) *Interpreter {
	it := &Interpreter{
		store:    st,
		renderer: r,
		activity: nopActivity{},
		catalog:  panel.Default,
		log:      zap.NewNop(),
		capacity: proto.DefaultCapacity,
	}

	for _, opt := range opts {
		opt(it)
	}

	return it
}

type Interpreter struct {
	store    Store
	renderer proto.Renderer
	activity idle.Activity
	catalog  panel.Catalog
	log      *zap.Logger
	capacity int
}

// Outcome is what a burst resolved to and what the peer should be told.
type Outcome struct {
	Op    proto.Opcode
	Reply proto.Reply
}

// Handle applies one burst. The returned error describes validation, storage
// or renderer faults; none of them end the session. Storage faults keep the
// Ok! reply since the display was still driven.
func (it *Interpreter) Handle(s *Session, burst []byte) (Outcome, error) {
	pkt, err := proto.DecodeBytes(burst)
	if errors.Is(err, proto.ErrEmpty) {
		return Outcome{}, nil
	}

	log := it.log.With(
		zap.String("session", s.ID.String()),
		zap.Stringer("mode", s.Mode),
		zap.Stringer("op", pkt.Op),
		zap.Int("len", len(burst)),
	)

	switch pkt.Op {
	case proto.OpInit:
		return it.init(s, pkt, err, log)
	case proto.OpLoad:
		return it.load(s, pkt, err, log)
	case proto.OpNext:
		return it.next(s, pkt, log)
	case proto.OpShow:
		return it.show(s, pkt, log)
	}

	log.Debug("ignored")
	return Outcome{Op: pkt.Op}, nil
}

func (it *Interpreter) init(s *Session, pkt proto.Packet, decodeErr error, log *zap.Logger) (Outcome, error) {
	out := Outcome{Op: pkt.Op, Reply: proto.ReplyOk}

	model, ok := it.catalog.Lookup(pkt.Selector)
	if decodeErr != nil || !ok {
		s.clear()
		out.Reply = proto.ReplyError
		err := errors.Wrapf(ErrUnknownDisplay, "selector %d", pkt.Selector)
		if decodeErr != nil {
			err = errors.Wrap(decodeErr, "init")
		}
		// The slot of the interrupted capture stays unfinished and must not
		// collect the next session's chunks.
		if s.live() {
			err = multierr.Append(err, it.store.Shutdown())
		}
		log.With(zap.Error(err)).Warn("rejected")
		return out, err
	}

	s.begin(model)
	log = log.With(zap.String("session", s.ID.String()), zap.String("display", model.Title))

	var storeErr error
	if s.live() {
		if storeErr = it.store.Open(); storeErr == nil {
			storeErr = it.store.Write(pkt.Raw)
		}
	}

	renderErr := it.renderer.Init(model)
	if renderErr != nil {
		out.Reply = proto.ReplyError
		renderErr = errors.Wrap(renderErr, "render init")
	}

	if s.live() {
		it.activity.Suspend()
	}

	err := multierr.Append(storeErr, renderErr)
	log.With(zap.Uint8("selector", pkt.Selector), zap.Error(err)).Info("capture started")
	return out, err
}

func (it *Interpreter) load(s *Session, pkt proto.Packet, decodeErr error, log *zap.Logger) (Outcome, error) {
	out := Outcome{Op: pkt.Op, Reply: proto.ReplyOk}

	total, err := pkt.Accumulate(s.received)
	if decodeErr != nil {
		err = decodeErr
	}
	if err != nil {
		out.Reply = proto.ReplyError
		err = errors.Wrapf(err, "load size=%d total=%d received=%d", pkt.Size, pkt.Total, s.received)
		log.With(zap.Error(err)).Warn("rejected")
		return out, err
	}

	storeErr := it.persist(s, pkt)
	s.received = total

	var renderErr error
	if s.loader != proto.LoaderNone {
		data := pkt.Chunk
		if s.invert {
			data = invert(data)
		}
		if renderErr = it.renderer.Load(s.loader, data); renderErr != nil {
			out.Reply = proto.ReplyError
			renderErr = errors.Wrap(renderErr, "render load")
		}
	}

	err = multierr.Append(storeErr, renderErr)
	log.With(
		zap.Uint16("size", pkt.Size),
		zap.Uint32("total", total),
		zap.Stringer("loader", s.loader),
		zap.Error(err),
	).Debug("loaded")
	return out, err
}

func (it *Interpreter) next(s *Session, pkt proto.Packet, log *zap.Logger) (Outcome, error) {
	out := Outcome{Op: pkt.Op, Reply: proto.ReplyOk}

	storeErr := it.persist(s, pkt)

	model, active := s.Model()
	if !active {
		log.With(zap.Error(storeErr)).Info("next without display")
		return out, storeErr
	}

	var renderErr error
	code := model.NextCode(it.renderer.Parity())
	if code != panel.NoCode {
		if renderErr = it.renderer.Command(uint8(code)); renderErr != nil {
			out.Reply = proto.ReplyError
			renderErr = errors.Wrapf(renderErr, "render command %#02x", code)
		}
	}

	s.loader = proto.LoaderNone
	if model.Secondary {
		s.loader = proto.LoaderSecondary
	}
	s.invert = model.Invert

	err := multierr.Append(storeErr, renderErr)
	log.With(zap.Int("code", code), zap.Stringer("loader", s.loader), zap.Error(err)).Info("next channel")
	return out, err
}

func (it *Interpreter) show(s *Session, pkt proto.Packet, log *zap.Logger) (Outcome, error) {
	out := Outcome{Op: pkt.Op, Reply: proto.ReplyOk}

	storeErr := it.persist(s, pkt)

	var renderErr error
	if model, active := s.Model(); active {
		if renderErr = it.renderer.Show(model); renderErr != nil {
			out.Reply = proto.ReplyError
			renderErr = errors.Wrap(renderErr, "render show")
		}
	}
	s.finish()

	if s.live() {
		storeErr = multierr.Append(storeErr, it.store.Close())
		if renderErr == nil {
			it.activity.Update()
		}
	}

	err := multierr.Append(storeErr, renderErr)
	log.With(zap.Error(err)).Info("shown")
	return out, err
}

// persist records the framed packet for live sessions; replay never writes.
func (it *Interpreter) persist(s *Session, pkt proto.Packet) error {
	if !s.live() {
		return nil
	}
	return it.store.Write(pkt.Raw)
}

func invert(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = ^b
	}
	return out
}

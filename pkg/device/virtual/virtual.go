package virtual

import (
	"sync"

	"go.uber.org/zap"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

func New(logger *zap.Logger) *Renderer {
	return &Renderer{l: logger.With(zap.String("renderer", "virtual"))}
}

// Renderer logs the panel traffic instead of driving hardware and keeps a
// copy of the last frame for inspection.
type Renderer struct {
	l *zap.Logger

	mu       sync.Mutex
	model    panel.Model
	parity   bool
	frames   int
	commands []uint8
	channels map[proto.Loader][]byte
	asleep   bool
}

// Frame is what the renderer holds after the last refresh.
type Frame struct {
	Model    panel.Model
	Frames   int
	Commands []uint8
	Primary  []byte
	Second   []byte
}

func (r *Renderer) Init(m panel.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.model = m
	r.commands = nil
	r.channels = make(map[proto.Loader][]byte)
	r.asleep = false

	r.l.With(zap.Uint8("selector", m.Selector), zap.String("title", m.Title)).Info("init")
	return nil
}

func (r *Renderer) Command(code uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, code)
	r.l.With(zap.Uint8("code", code)).Info("command")
	return nil
}

func (r *Renderer) Load(l proto.Loader, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels == nil {
		r.channels = make(map[proto.Loader][]byte)
	}
	r.channels[l] = append(r.channels[l], data...)
	r.l.With(zap.Stringer("loader", l), zap.Int("len", len(data)), zap.Int("total", len(r.channels[l]))).Debug("load")
	return nil
}

func (r *Renderer) Show(m panel.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames++
	r.parity = !r.parity
	r.l.With(
		zap.Uint8("selector", m.Selector),
		zap.Int("primary", len(r.channels[proto.LoaderPrimary])),
		zap.Int("secondary", len(r.channels[proto.LoaderSecondary])),
		zap.Bool("parity", r.parity),
	).Info("show")
	return nil
}

func (r *Renderer) Sleep() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.asleep = true
	r.l.Info("sleep")
	return nil
}

func (r *Renderer) Parity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parity
}

func (r *Renderer) Asleep() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.asleep
}

func (r *Renderer) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Frame{
		Model:    r.model,
		Frames:   r.frames,
		Commands: append([]uint8(nil), r.commands...),
		Primary:  append([]byte(nil), r.channels[proto.LoaderPrimary]...),
		Second:   append([]byte(nil), r.channels[proto.LoaderSecondary]...),
	}
}

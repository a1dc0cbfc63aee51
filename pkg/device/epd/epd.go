// Package epd drives a Waveshare style SPI e-paper HAT through periph.io.
package epd

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

const (
	cmdPowerOff  = 0x02
	cmdPowerOn   = 0x04
	cmdDeepSleep = 0x07
	sleepCheck   = 0xa5

	cmdSSDDeepSleep = 0x10

	// spidev rejects transfers above its buffer size, 4KiB by default.
	maxTransfer = 4096

	pollInterval = 10 * time.Millisecond
)

var ErrBusyTimeout = errors.New("panel busy timeout")

// Pins names the GPIO lines by their gpioreg names.
type Pins struct {
	DC   string
	RST  string
	BUSY string
}

// DefaultPins match the Waveshare Raspberry Pi HAT.
var DefaultPins = Pins{DC: "GPIO25", RST: "GPIO17", BUSY: "GPIO24"}

// bus is the part of spi.Conn the renderer uses.
type bus interface {
	Tx(w, r []byte) error
}

type Renderer struct {
	l           *zap.Logger
	busyTimeout time.Duration
	delay       func(time.Duration)

	mu     sync.Mutex
	bus    bus
	closer func() error
	dc     gpio.PinOut
	rst    gpio.PinOut
	busy   gpio.PinIn
	model  panel.Model
	parity bool
}

// Open initialises the host drivers and claims the SPI port and pins.
func Open(port string, pins Pins, opts ...Option) (*Renderer, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	p, err := spireg.Open(port)
	if err != nil {
		return nil, errors.Wrapf(err, "open spi %q", port)
	}

	c, err := p.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "connect spi")
	}

	lookup := func(name string) (gpio.PinIO, error) {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, errors.Errorf("gpio %s not found", name)
		}
		return pin, nil
	}

	dc, err := lookup(pins.DC)
	if err == nil {
		err = dc.Out(gpio.Low)
	}
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	rst, err := lookup(pins.RST)
	if err == nil {
		err = rst.Out(gpio.High)
	}
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	busy, err := lookup(pins.BUSY)
	if err == nil {
		err = busy.In(gpio.PullUp, gpio.NoEdge)
	}
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	r := newRenderer(c, dc, rst, busy, opts...)
	r.closer = p.Close
	r.l.With(zap.String("spi", p.String()), zap.String("dc", pins.DC), zap.String("rst", pins.RST), zap.String("busy", pins.BUSY)).Info("opened")
	return r, nil
}

func newRenderer(b bus, dc, rst gpio.PinOut, busy gpio.PinIn, opts ...Option) *Renderer {
	r := &Renderer{
		l:           zap.NewNop(),
		busyTimeout: 30 * time.Second,
		delay:       time.Sleep,
		bus:         b,
		dc:          dc,
		rst:         rst,
		busy:        busy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *Renderer) Init(m panel.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.model = m
	if err := r.reset(); err != nil {
		return err
	}

	if m.BusyLow {
		if err := r.command(cmdPowerOn); err != nil {
			return err
		}
		if err := r.waitBusy(); err != nil {
			return err
		}
	}

	if err := r.command(uint8(m.First)); err != nil {
		return err
	}

	r.l.With(zap.Uint8("selector", m.Selector), zap.String("title", m.Title)).Info("init")
	return nil
}

func (r *Renderer) Command(code uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.command(code)
}

// Load streams image bytes to the channel opened by the last command; the
// controller tracks which channel that is.
func (r *Renderer) Load(l proto.Loader, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l == proto.LoaderNone {
		return nil
	}
	return r.data(data)
}

func (r *Renderer) Show(m panel.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.command(uint8(m.Refresh)); err != nil {
		return err
	}
	if err := r.waitBusy(); err != nil {
		return err
	}

	r.parity = !r.parity
	r.l.With(zap.Uint8("selector", m.Selector), zap.Bool("parity", r.parity)).Info("show")
	return nil
}

func (r *Renderer) Sleep() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.model.BusyLow {
		if err := r.command(cmdSSDDeepSleep); err != nil {
			return err
		}
		return r.data([]byte{0x01})
	}

	if err := r.command(cmdPowerOff); err != nil {
		return err
	}
	if err := r.waitBusy(); err != nil {
		return err
	}
	if err := r.command(cmdDeepSleep); err != nil {
		return err
	}
	if err := r.data([]byte{sleepCheck}); err != nil {
		return err
	}

	r.l.Info("sleep")
	return nil
}

func (r *Renderer) Parity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parity
}

func (r *Renderer) reset() error {
	steps := []struct {
		level gpio.Level
		hold  time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	}
	for _, st := range steps {
		if err := r.rst.Out(st.level); err != nil {
			return errors.Wrap(err, "reset")
		}
		r.delay(st.hold)
	}
	return nil
}

func (r *Renderer) command(code uint8) error {
	if err := r.dc.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "dc")
	}
	if err := r.bus.Tx([]byte{code}, nil); err != nil {
		return errors.Wrapf(err, "command %#02x", code)
	}
	return nil
}

func (r *Renderer) data(p []byte) error {
	if err := r.dc.Out(gpio.High); err != nil {
		return errors.Wrap(err, "dc")
	}
	for len(p) > 0 {
		n := len(p)
		if n > maxTransfer {
			n = maxTransfer
		}
		if err := r.bus.Tx(p[:n], nil); err != nil {
			return errors.Wrap(err, "data")
		}
		p = p[n:]
	}
	return nil
}

// waitBusy polls BUSY until the controller releases it. UC81xx parts pull
// it low while working, SSD16xx parts drive it high.
func (r *Renderer) waitBusy() error {
	working := gpio.High
	if r.model.BusyLow {
		working = gpio.Low
	}

	polls := int(r.busyTimeout / pollInterval)
	for i := 0; r.busy.Read() == working; i++ {
		if i >= polls {
			return errors.Wrapf(ErrBusyTimeout, "after %s", r.busyTimeout)
		}
		r.delay(pollInterval)
	}
	return nil
}

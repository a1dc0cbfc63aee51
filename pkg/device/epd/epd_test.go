package epd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

type op struct {
	data bool
	b    []byte
}

type recorder struct {
	dc  *gpiotest.Pin
	ops []op
}

func (r *recorder) Tx(w, _ []byte) error {
	r.ops = append(r.ops, op{data: r.dc.Read() == gpio.High, b: append([]byte(nil), w...)})
	return nil
}

func (r *recorder) commands() []byte {
	var out []byte
	for _, o := range r.ops {
		if !o.data {
			out = append(out, o.b...)
		}
	}
	return out
}

func (r *recorder) payload() []byte {
	var out []byte
	for _, o := range r.ops {
		if o.data {
			out = append(out, o.b...)
		}
	}
	return out
}

// busyPin reports working for the first n reads after each arm.
type busyPin struct {
	*gpiotest.Pin
	working gpio.Level
	n       int
}

func (p *busyPin) Read() gpio.Level {
	if p.n > 0 {
		p.n--
		return p.working
	}
	return !p.working
}

func newTestRenderer(working gpio.Level, opts ...Option) (*Renderer, *recorder, *busyPin) {
	dc := &gpiotest.Pin{N: "DC"}
	rec := &recorder{dc: dc}
	busy := &busyPin{Pin: &gpiotest.Pin{N: "BUSY"}, working: working}
	opts = append([]Option{withDelay(func(time.Duration) {})}, opts...)
	return newRenderer(rec, dc, &gpiotest.Pin{N: "RST"}, busy, opts...), rec, busy
}

func TestCaptureSequence(t *testing.T) {
	m, ok := panel.Default.Lookup(14)
	require.True(t, ok)

	r, rec, busy := newTestRenderer(gpio.Low)
	busy.n = 3

	require.NoError(t, r.Init(m))
	require.NoError(t, r.Load(proto.LoaderPrimary, []byte{1, 2}))
	require.NoError(t, r.Command(0x13))
	require.NoError(t, r.Load(proto.LoaderSecondary, []byte{3}))
	require.NoError(t, r.Load(proto.LoaderNone, []byte{9}))
	busy.n = 5
	require.NoError(t, r.Show(m))

	require.Equal(t, []byte{cmdPowerOn, 0x10, 0x13, 0x12}, rec.commands())
	require.Equal(t, []byte{1, 2, 3}, rec.payload())
	require.True(t, r.Parity())
}

func TestLargeLoadIsChunked(t *testing.T) {
	r, rec, _ := newTestRenderer(gpio.High)
	require.NoError(t, r.Load(proto.LoaderPrimary, make([]byte, maxTransfer*2+10)))
	require.Len(t, rec.ops, 3)
	require.Len(t, rec.ops[2].b, 10)
}

func TestBusyTimeout(t *testing.T) {
	m, ok := panel.Default.Lookup(0)
	require.True(t, ok)

	r, _, busy := newTestRenderer(gpio.High, WithBusyTimeout(50*time.Millisecond))
	busy.n = 1000

	err := r.Show(m)
	require.ErrorIs(t, err, ErrBusyTimeout)
	require.False(t, r.Parity())
}

func TestSleep(t *testing.T) {
	testCases := []struct {
		name     string
		selector uint8
		working  gpio.Level
		commands []byte
		payload  []byte
	}{
		{"uc81xx", 14, gpio.Low, []byte{cmdPowerOn, 0x10, cmdPowerOff, cmdDeepSleep}, []byte{sleepCheck}},
		{"ssd16xx", 0, gpio.High, []byte{0x24, cmdSSDDeepSleep}, []byte{0x01}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := panel.Default.Lookup(tc.selector)
			require.True(t, ok)

			r, rec, _ := newTestRenderer(tc.working)
			require.NoError(t, r.Init(m))
			require.NoError(t, r.Sleep())
			require.Equal(t, tc.commands, rec.commands())
			require.Equal(t, tc.payload, rec.payload())
		})
	}
}

func TestSleepBeforeInit(t *testing.T) {
	m, ok := panel.Default.Lookup(14)
	require.True(t, ok)

	r, rec, _ := newTestRenderer(gpio.Low, WithModel(m))
	require.NoError(t, r.Sleep())
	require.Equal(t, []byte{cmdPowerOff, cmdDeepSleep}, rec.commands())
	require.Equal(t, []byte{sleepCheck}, rec.payload())
}

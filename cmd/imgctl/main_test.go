package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"epaperd/pkg/sender"
	"epaperd/pkg/store"
)

func TestDumpStream(t *testing.T) {
	var stream []byte
	for _, p := range sender.Capture(34, []byte{1, 2, 3}, []byte{4}, 2) {
		stream = append(stream, p...)
	}
	stream = append(stream, 'L', 9)

	var out bytes.Buffer
	require.NoError(t, dumpStream(&out, bytes.NewReader(stream)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	require.Contains(t, lines[0], "selector=34 (4.2 inch b V2)")
	require.Contains(t, lines[1], "size=2 total=2")
	require.Contains(t, lines[2], "size=1 total=3")
	require.Contains(t, lines[3], "next")
	require.Contains(t, lines[5], "show")
	require.Contains(t, lines[6], "truncated")
}

func TestDispatchErrors(t *testing.T) {
	testCases := [][]string{
		nil,
		{"bogus"},
		{"show"},
		{"dump", "x"},
		{"push"},
		{"send"},
	}

	for _, args := range testCases {
		require.Error(t, dispatch(context.Background(), args, zap.NewNop()), "%v", args)
	}
}

func TestListKeepsCursor(t *testing.T) {
	fs := afero.NewMemMapFs()
	daemon, err := store.New(fs, store.WithMaxSlots(64))
	require.NoError(t, err)
	for i := 0; i < 41; i++ {
		require.NoError(t, daemon.Open())
		require.NoError(t, daemon.Write([]byte{'S'}))
		require.NoError(t, daemon.Close())
	}
	require.Equal(t, store.Cursor{CurrentIndex: 40, SlotCount: 41}, daemon.Cursor())

	before, err := afero.ReadFile(fs, store.CursorFile)
	require.NoError(t, err)

	for _, max := range []uint16{store.DefaultMaxSlots, 64} {
		st, err := store.Inspect(fs, store.WithMaxSlots(max))
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, printSlots(&out, st))
		require.NotEmpty(t, out.String())

		after, err := afero.ReadFile(fs, store.CursorFile)
		require.NoError(t, err)
		require.Equal(t, before, after, "max %d", max)
	}
}

func TestApplyConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "epaperd.toml", []byte(`
data_dir = "/srv/slots"
max_slots = 64
display_type = 14
baud_rate = 9600
`), 0o644))

	defer func(d string, m uint16, s uint8, b int) {
		*dataDir, *maxSlots, *display, *baudRate = d, m, s, b
	}(*dataDir, *maxSlots, *display, *baudRate)

	*maxSlots = 8
	changed := func(name string) bool { return name == "max-slots" }
	require.NoError(t, applyConfig(fs, "epaperd.toml", changed))

	require.Equal(t, "/srv/slots", *dataDir)
	require.Equal(t, uint16(8), *maxSlots)
	require.Equal(t, uint8(14), *display)
	require.Equal(t, 9600, *baudRate)

	require.Error(t, applyConfig(fs, "missing.toml", changed))
}

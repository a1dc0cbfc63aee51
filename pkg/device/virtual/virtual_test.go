package virtual

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

func TestRendererFrame(t *testing.T) {
	r := New(zap.NewNop())
	m, ok := panel.Default.Lookup(panel.Alternating)
	require.True(t, ok)

	require.NoError(t, r.Init(m))
	require.NoError(t, r.Load(proto.LoaderPrimary, []byte{1, 2}))
	require.NoError(t, r.Load(proto.LoaderPrimary, []byte{3}))
	require.NoError(t, r.Command(0x26))
	require.NoError(t, r.Load(proto.LoaderSecondary, []byte{4}))
	require.False(t, r.Parity())
	require.NoError(t, r.Show(m))
	require.True(t, r.Parity())

	f := r.Frame()
	require.Equal(t, 1, f.Frames)
	require.Equal(t, []byte{1, 2, 3}, f.Primary)
	require.Equal(t, []byte{4}, f.Second)
	require.Equal(t, []uint8{0x26}, f.Commands)

	require.NoError(t, r.Init(m))
	require.Empty(t, r.Frame().Primary)

	require.NoError(t, r.Sleep())
	require.True(t, r.Asleep())
}

package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"epaperd/pkg/device/virtual"
	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

func TestProxyRoundTrip(t *testing.T) {
	dev := virtual.New(zap.NewNop())
	h, err := Handler("frame", dev)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	c, err := New(srv.Listener.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	m, ok := panel.Default.Lookup(panel.Alternating)
	require.True(t, ok)

	require.NoError(t, c.Init(m))
	require.NoError(t, c.Load(proto.LoaderPrimary, []byte{1, 2, 3}))
	require.False(t, c.Parity())
	require.NoError(t, c.Command(0x26))
	require.NoError(t, c.Load(proto.LoaderSecondary, []byte{4}))
	require.NoError(t, c.Show(m))
	require.True(t, c.Parity())
	require.NoError(t, c.Sleep())

	f := dev.Frame()
	require.Equal(t, []byte{1, 2, 3}, f.Primary)
	require.Equal(t, []byte{4}, f.Second)
	require.Equal(t, []uint8{0x26}, f.Commands)
	require.True(t, dev.Asleep())

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, Status{Name: "frame", Parity: true, Display: m.Title, Frames: 1, Bytes: 4}, st)
}

package sender

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"epaperd/pkg/device/virtual"
	"epaperd/pkg/interp"
	"epaperd/pkg/proto"
	"epaperd/pkg/store"
)

// loopback feeds every write to an interpreter and queues its reply.
type loopback struct {
	it      *interp.Interpreter
	session *interp.Session
	replies bytes.Buffer
	writes  int
	reject  int
}

func (l *loopback) Write(p []byte) (int, error) {
	l.writes++
	if l.reject > 0 {
		l.reject--
		l.replies.Write(proto.ReplyError.Bytes())
		return len(p), nil
	}
	out, _ := l.it.Handle(l.session, append([]byte(nil), p...))
	l.replies.Write(out.Reply.Bytes())
	return len(p), nil
}

func (l *loopback) Read(p []byte) (int, error) {
	return l.replies.Read(p)
}

func newLoopback(t *testing.T) (*loopback, afero.Fs, *virtual.Renderer) {
	fs := afero.NewMemMapFs()
	st, err := store.New(fs, store.WithMaxSlots(4))
	require.NoError(t, err)
	r := virtual.New(zap.NewNop())
	return &loopback{it: interp.New(st, r), session: interp.NewSession(interp.ModeLive)}, fs, r
}

func TestSendCapture(t *testing.T) {
	l, fs, r := newLoopback(t)
	black := bytes.Repeat([]byte{0xf0}, 2500)
	red := bytes.Repeat([]byte{0x0f}, 700)

	rep, err := New(l, WithChunkSize(1000)).Send(context.Background(), 14, black, red)
	require.NoError(t, err)
	require.Equal(t, 3+1+1+1+1, rep.Packets)
	require.Zero(t, rep.Rejected)

	f := r.Frame()
	require.Equal(t, black, f.Primary)
	require.Equal(t, red, f.Second)

	stored, err := afero.ReadFile(fs, store.SlotName(0))
	require.NoError(t, err)
	require.Equal(t, rep.Bytes, len(stored))
}

func TestPushRecordedSlot(t *testing.T) {
	var stream []byte
	for _, p := range Capture(13, []byte("single channel"), nil, 5) {
		stream = append(stream, p...)
	}
	stream = append(stream, '?')

	l, fs, _ := newLoopback(t)
	rep, err := New(l).Push(context.Background(), bytes.NewReader(stream))
	require.NoError(t, err)
	require.Equal(t, 1, rep.Skipped)

	stored, err := afero.ReadFile(fs, store.SlotName(0))
	require.NoError(t, err)
	require.Equal(t, stream[:len(stream)-1], stored)
}

func TestRetryOnError(t *testing.T) {
	l, _, _ := newLoopback(t)
	l.reject = 1

	rep, err := New(l, WithRetries(2)).Send(context.Background(), 0, []byte{1}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Retried)
	require.Equal(t, 4, rep.Packets)
	require.Equal(t, 5, l.writes)
}

func TestInitRejected(t *testing.T) {
	l, _, _ := newLoopback(t)

	_, err := New(l).Send(context.Background(), 250, []byte{1}, nil)
	require.ErrorIs(t, err, ErrRejected)
}

type silent struct{}

func (silent) Write(p []byte) (int, error) { return len(p), nil }
func (silent) Read([]byte) (int, error)    { return 0, nil }

func TestNoReply(t *testing.T) {
	_, err := New(silent{}, WithTimeout(20*time.Millisecond)).Send(context.Background(), 0, nil, nil)
	require.ErrorIs(t, err, ErrNoReply)
}

func TestCapture(t *testing.T) {
	pkts := Capture(34, []byte{1, 2, 3}, []byte{4}, 2)
	require.Equal(t, [][]byte{
		proto.InitPacket(34),
		proto.LoadPacket([]byte{1, 2}, 2),
		proto.LoadPacket([]byte{3}, 3),
		proto.NextPacket(),
		proto.LoadPacket([]byte{4}, 4),
		proto.ShowPacket(),
	}, pkts)
}

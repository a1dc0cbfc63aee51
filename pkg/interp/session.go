package interp

import (
	"github.com/rs/xid"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

type Mode int

const (
	// ModeLive persists every packet and answers the peer.
	ModeLive Mode = iota
	// ModeReplay drives the renderer from a stored slot only.
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "live"
}

func NewSession(mode Mode) *Session {
	return &Session{ID: xid.New(), Mode: mode}
}

// Session is the per-link protocol context. Live and replay sessions never
// share one.
type Session struct {
	ID   xid.ID
	Mode Mode

	model    panel.Model
	active   bool
	loader   proto.Loader
	invert   bool
	received uint32
}

func (s *Session) Model() (panel.Model, bool) {
	return s.model, s.active
}

func (s *Session) Loader() proto.Loader {
	return s.loader
}

func (s *Session) Invert() bool {
	return s.invert
}

// Received is the running total of Load chunk bytes since Init.
func (s *Session) Received() uint32 {
	return s.received
}

func (s *Session) begin(model panel.Model) {
	s.ID = xid.New()
	s.model = model
	s.active = true
	s.loader = proto.LoaderPrimary
	s.invert = false
	s.received = 0
}

func (s *Session) clear() {
	s.model = panel.Model{}
	s.active = false
	s.loader = proto.LoaderNone
	s.invert = false
	s.received = 0
}

func (s *Session) finish() {
	s.loader = proto.LoaderNone
	s.invert = false
	s.received = 0
}

func (s *Session) live() bool {
	return s.Mode == ModeLive
}

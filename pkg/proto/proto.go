package proto

import (
	"epaperd/pkg/panel"
)

// Loader selects which renderer channel receives Load chunks.
type Loader uint8

const (
	LoaderNone Loader = iota
	LoaderPrimary
	LoaderSecondary
)

func (l Loader) String() string {
	switch l {
	case LoaderPrimary:
		return "primary"
	case LoaderSecondary:
		return "secondary"
	}
	return "none"
}

// Renderer programs the display hardware. Implementations own the register
// sequencing; callers only pass decoded packet payloads.
type Renderer interface {
	Init(model panel.Model) error
	Command(code uint8) error
	Load(loader Loader, data []byte) error
	Show(model panel.Model) error
	Sleep() error

	// Parity is the channel flag consulted by models with alternating
	// channel codes.
	Parity() bool
}

type Reply string

const (
	ReplyNone  Reply = ""
	ReplyOk    Reply = "Ok!"
	ReplyError Reply = "Error!"
)

func (r Reply) Bytes() []byte {
	return []byte(r)
}

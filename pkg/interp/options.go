package interp

import (
	"go.uber.org/zap"

	"epaperd/pkg/idle"
	"epaperd/pkg/panel"
)

type Option func(it *Interpreter)

func WithCatalog(c panel.Catalog) Option {
	return func(it *Interpreter) {
		it.catalog = c
	}
}

func WithActivity(a idle.Activity) Option {
	return func(it *Interpreter) {
		it.activity = a
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(it *Interpreter) {
		it.log = log.With(zap.String("via", "interp"))
	}
}

// WithBufferSize sets the replay buffer capacity; it must hold the largest
// stored packet.
func WithBufferSize(n int) Option {
	return func(it *Interpreter) {
		it.capacity = n
	}
}

type nopActivity struct{}

func (nopActivity) Suspend() {}
func (nopActivity) Update()  {}

package epd

import (
	"time"

	"go.uber.org/zap"

	"epaperd/pkg/panel"
)

type Option func(r *Renderer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		r.l = l.With(zap.String("renderer", "epd"))
	}
}

// WithBusyTimeout bounds how long a refresh may hold the BUSY line.
func WithBusyTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.busyTimeout = d
	}
}

// WithModel names the attached panel so Sleep drives the right controller
// family before the first Init.
func WithModel(m panel.Model) Option {
	return func(r *Renderer) {
		r.model = m
	}
}

func withDelay(fn func(time.Duration)) Option {
	return func(r *Renderer) {
		r.delay = fn
	}
}

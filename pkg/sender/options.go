package sender

import (
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type Option func(s *Sender)

func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) {
		s.log = l.With(zap.String("via", "sender"))
	}
}

// WithProgress reports sent packet bytes to bar.
func WithProgress(bar *progressbar.ProgressBar) Option {
	return func(s *Sender) {
		s.bar = bar
	}
}

// WithTimeout bounds the wait for each reply.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		s.timeout = d
	}
}

// WithRetries resends a packet answered with Error! up to n times.
func WithRetries(n int) Option {
	return func(s *Sender) {
		s.retries = n
	}
}

func WithChunkSize(n int) Option {
	return func(s *Sender) {
		s.chunk = n
	}
}

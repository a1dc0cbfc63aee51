package store

import (
	"go.uber.org/zap"
)

type Option func(s *Store)

// WithMaxSlots bounds the store; the oldest slot is recycled past it.
func WithMaxSlots(max uint16) Option {
	return func(s *Store) {
		s.max = max
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log.With(zap.String("via", "store"))
	}
}

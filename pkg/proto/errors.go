package proto

import (
	"github.com/pkg/errors"
)

var (
	ErrNotOpen     = errors.New("serial port not open")
	ErrOverflow    = errors.New("command buffer overflow")
	ErrShortBuffer = errors.New("read past buffered bytes")
	ErrEmpty       = errors.New("empty burst")
	ErrTruncated   = errors.New("truncated packet")
	ErrChunkLength = errors.New("chunk length exceeds received bytes")
	ErrCumulative  = errors.New("cumulative length mismatch")
)

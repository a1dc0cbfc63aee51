package proto

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

type Options struct {
	DTR         bool
	RTS         bool
	BaudRate    int
	ReadTimeout time.Duration
}

func NewSerial(name string) *Serial {
	return &Serial{name: name}
}

// Serial is the live link. name may be a full device path (/dev/rfcomm0) or a
// fragment matched against the enumerated ports.
type Serial struct {
	name string
	port serial.Port
}

func (s *Serial) Ports() ([]string, error) {
	return serial.GetPortsList()
}

func (s *Serial) Name() string {
	return s.name
}

func (s *Serial) Open(opts *Options) error {
	ports, err := s.Ports()
	if err != nil {
		return err
	}

	matched := ""
	for _, name := range ports {
		if name == s.name {
			matched = name
			break
		}
		if matched == "" && strings.Contains(name, s.name) {
			matched = name
		}
	}
	if matched == "" {
		if !strings.HasPrefix(s.name, "/dev/") {
			return errors.Errorf("serial port %q not found", s.name)
		}
		// rfcomm nodes are not always enumerated
		matched = s.name
	}

	port, err := serial.Open(matched, &serial.Mode{BaudRate: opts.BaudRate})
	if err != nil {
		return errors.Wrapf(err, "open %s", matched)
	}

	if err := port.SetDTR(opts.DTR); err != nil {
		_ = port.Close()
		return err
	}

	if err := port.SetRTS(opts.RTS); err != nil {
		_ = port.Close()
		return err
	}

	if opts.ReadTimeout > 0 {
		if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
			_ = port.Close()
			return err
		}
	}

	s.name = matched
	s.port = port
	return nil
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

func (s *Serial) Read(p []byte) (n int, err error) {
	if s.port == nil {
		return 0, ErrNotOpen
	}
	return s.port.Read(p)
}

func (s *Serial) Write(p []byte) (n int, err error) {
	if s.port == nil {
		return 0, ErrNotOpen
	}
	return s.port.Write(p)
}

package store

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	CursorFile = "cursor.bin"

	// CursorSize is the reserved record size. It must not change between
	// releases; new fields go into the reserved area.
	CursorSize = 256

	cursorOffset = 128
)

// Cursor is the durable position of the store.
type Cursor struct {
	CurrentIndex uint16
	SlotCount    uint16
}

type record [CursorSize]byte

func (r *record) cursor() Cursor {
	return Cursor{
		CurrentIndex: binary.LittleEndian.Uint16(r[cursorOffset:]),
		SlotCount:    binary.LittleEndian.Uint16(r[cursorOffset+2:]),
	}
}

func (r *record) put(c Cursor) {
	binary.LittleEndian.PutUint16(r[cursorOffset:], c.CurrentIndex)
	binary.LittleEndian.PutUint16(r[cursorOffset+2:], c.SlotCount)
}

// loadRecord reads the record; a missing file yields a zeroed one and a short
// file keeps whatever prefix it holds.
func loadRecord(fs afero.Fs) (*record, error) {
	var r record
	bs, err := afero.ReadFile(fs, CursorFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &r, nil
		}
		return nil, errors.Wrap(err, "load cursor")
	}
	copy(r[:], bs)
	return &r, nil
}

func saveRecord(fs afero.Fs, r *record) error {
	f, err := fs.OpenFile(CursorFile, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrap(err, "save cursor")
	}

	if _, err := f.Write(r[:]); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "save cursor")
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sync cursor")
	}

	return f.Close()
}

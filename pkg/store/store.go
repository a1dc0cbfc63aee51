package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	Ext = ".img"

	DefaultMaxSlots = 32
	MaxSlots        = 1000
)

var (
	ErrNoSlot     = errors.New("no slot open")
	ErrShortWrite = errors.New("short write")
	ErrReadOnly   = errors.New("store opened for inspection")
)

func SlotName(ordinal uint16) string {
	return fmt.Sprintf("%03d%s", ordinal, Ext)
}

// ParseSlotName is the inverse of SlotName.
func ParseSlotName(name string) (uint16, bool) {
	stem := strings.TrimSuffix(name, Ext)
	if stem == name || len(stem) != 3 {
		return 0, false
	}
	n, err := strconv.ParseUint(stem, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

type Slot struct {
	Ordinal uint16
	Name    string
	Size    int64
	ModTime time.Time
}

func New(fs afero.Fs, opts ...Option) (*Store, error) {
	s, err := configure(fs, opts...)
	if err != nil {
		return nil, err
	}

	if err := s.Reconcile(); err != nil {
		return nil, err
	}

	return s, nil
}

// Inspect opens the store without writing anything: the cursor is squared
// with the slot files in memory only and Open is refused.
func Inspect(fs afero.Fs, opts ...Option) (*Store, error) {
	s, err := configure(fs, opts...)
	if err != nil {
		return nil, err
	}
	s.readOnly = true

	if err := s.reconcile(); err != nil {
		return nil, err
	}

	return s, nil
}

func configure(fs afero.Fs, opts ...Option) (*Store, error) {
	s := &Store{
		fs:  fs,
		log: zap.NewNop(),
		max: DefaultMaxSlots,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.max == 0 || s.max > MaxSlots {
		return nil, errors.Errorf("max slots %d out of range [1, %d]", s.max, MaxSlots)
	}

	return s, nil
}

// Store keeps a bounded ring of slot files plus the durable cursor. At most
// one slot is open for writing.
type Store struct {
	fs       afero.Fs
	log      *zap.Logger
	max      uint16
	readOnly bool
	rec      *record
	cursor   Cursor

	slot    afero.File
	name    string
	written int64
}

func (s *Store) Max() uint16 {
	return s.max
}

func (s *Store) Cursor() Cursor {
	return s.cursor
}

func (s *Store) IsOpen() bool {
	return s.slot != nil
}

// Reconcile reloads the cursor and squares it with the slot files on disk,
// then persists the result.
func (s *Store) Reconcile() error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := s.reconcile(); err != nil {
		return err
	}
	return s.saveCursor()
}

func (s *Store) reconcile() error {
	rec, err := loadRecord(s.fs)
	if err != nil {
		return err
	}

	loaded := rec.cursor()
	cur := loaded
	if cur.CurrentIndex >= s.max {
		cur.CurrentIndex = 0
	}
	if cur.SlotCount >= s.max {
		cur.SlotCount = 0
	}

	slots, err := s.Slots()
	if err != nil {
		return err
	}

	// A full ring keeps the persisted write position, anything less is
	// counted from disk.
	if len(slots) < int(s.max) {
		cur.SlotCount = uint16(len(slots))
	}

	ordinals := lo.Map(slots, func(sl Slot, _ int) uint16 { return sl.Ordinal })
	if cur.CurrentIndex != 0 && !lo.Contains(ordinals, cur.CurrentIndex) {
		cur.CurrentIndex = 0
	}

	s.log.With(
		zap.Uint16("loaded-index", loaded.CurrentIndex),
		zap.Uint16("loaded-count", loaded.SlotCount),
		zap.Uint16("index", cur.CurrentIndex),
		zap.Uint16("count", cur.SlotCount),
		zap.Int("found", len(slots)),
		zap.Bool("read-only", s.readOnly),
	).Info("cursor reconciled")

	s.rec = rec
	s.cursor = cur
	return nil
}

func (s *Store) saveCursor() error {
	s.rec.put(s.cursor)
	return saveRecord(s.fs, s.rec)
}

// Slots lists the slot files within range, ordered by ordinal.
func (s *Store) Slots() ([]Slot, error) {
	infos, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		return nil, errors.Wrap(err, "list slots")
	}

	infos = lo.Filter(infos, func(fi os.FileInfo, _ int) bool {
		n, ok := ParseSlotName(fi.Name())
		return ok && !fi.IsDir() && n < s.max
	})

	return lo.Map(infos, func(fi os.FileInfo, _ int) Slot {
		n, _ := ParseSlotName(fi.Name())
		return Slot{Ordinal: n, Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()}
	}), nil
}

// Open starts a new slot named after the write position. A slot that is
// still open is dropped without advancing, so the new one truncates it.
func (s *Store) Open() error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.slot != nil {
		_ = s.abandon()
	}

	name := SlotName(s.cursor.SlotCount)
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		s.log.With(zap.String("slot", name), zap.Error(err)).Warn("open for writing failed")
		return errors.Wrapf(err, "open slot %s", name)
	}

	s.slot, s.name, s.written = f, name, 0
	s.log.With(zap.String("slot", name)).Info("opened for writing")
	return nil
}

func (s *Store) Write(p []byte) error {
	if s.slot == nil {
		s.log.With(zap.Int("len", len(p))).Warn("write without open slot")
		return ErrNoSlot
	}

	n, err := s.slot.Write(p)
	s.written += int64(n)
	if err != nil {
		s.log.With(zap.String("slot", s.name), zap.Error(err)).Warn("write failed")
		return errors.Wrapf(err, "write slot %s", s.name)
	}
	if n != len(p) {
		s.log.With(zap.String("slot", s.name), zap.Int("sent", len(p)), zap.Int("written", n)).Warn("short write")
		return errors.Wrapf(ErrShortWrite, "slot %s: %d of %d bytes", s.name, n, len(p))
	}

	s.log.With(zap.String("slot", s.name), zap.Int("len", n)).Debug("written")
	return nil
}

// Close finalises the open slot and advances the cursor. A slot that fails
// to flush is not counted.
func (s *Store) Close() error {
	if s.slot == nil {
		return nil
	}

	f, name := s.slot, s.name
	s.slot, s.name = nil, ""

	if err := multierr.Append(f.Sync(), f.Close()); err != nil {
		s.log.With(zap.String("slot", name), zap.Error(err)).Warn("close failed")
		return errors.Wrapf(err, "close slot %s", name)
	}

	s.cursor.CurrentIndex = s.cursor.SlotCount
	s.cursor.SlotCount = (s.cursor.SlotCount + 1) % s.max

	s.log.With(
		zap.String("slot", name),
		zap.String("size", bytesize.New(float64(s.written)).String()),
		zap.Uint16("index", s.cursor.CurrentIndex),
		zap.Uint16("count", s.cursor.SlotCount),
	).Info("closed")

	return s.saveCursor()
}

// Shutdown drops an unfinished slot without advancing the cursor.
func (s *Store) Shutdown() error {
	if s.slot == nil {
		return nil
	}
	return s.abandon()
}

func (s *Store) abandon() error {
	f, name := s.slot, s.name
	s.slot, s.name = nil, ""
	s.log.With(zap.String("slot", name), zap.Int64("written", s.written)).Info("abandoned")
	return f.Close()
}

// Read opens the slot at index for replay.
func (s *Store) Read(index uint16) (afero.File, error) {
	if index >= s.max {
		return nil, errors.Errorf("slot index %d out of range [0, %d)", index, s.max)
	}

	name := SlotName(index)
	f, err := s.fs.Open(name)
	if err != nil {
		s.log.With(zap.String("slot", name), zap.Error(err)).Warn("open for reading failed")
		return nil, errors.Wrapf(err, "read slot %s", name)
	}
	return f, nil
}

// Current opens the most recently completed slot.
func (s *Store) Current() (afero.File, error) {
	return s.Read(s.cursor.CurrentIndex)
}

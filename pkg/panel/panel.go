// Package panel describes the e-paper models a capture can select with the
// Init selector byte.
package panel

import (
	"sort"
)

// NoCode marks a model without a channel-switch instruction.
const NoCode = -1

// Alternating is the selector whose second channel code depends on the
// renderer parity.
const Alternating = 34

const (
	alternateEven = 0x26
	alternateOdd  = 0x13
)

type Model struct {
	Selector uint8
	Title    string

	// First opens the primary data channel, Next switches to the secondary
	// one and Refresh triggers the panel update.
	First   int
	Next    int
	Refresh int

	// Secondary is false for single-channel panels: Next closes the load
	// path instead of redirecting it.
	Secondary bool

	// Invert flips every bit loaded after Next.
	Invert bool

	// BusyLow is true for controllers that drive BUSY low while working.
	BusyLow bool
}

// NextCode resolves the channel-switch instruction, or NoCode.
func (m Model) NextCode(parity bool) int {
	if m.Selector == Alternating {
		if parity {
			return alternateOdd
		}
		return alternateEven
	}
	return m.Next
}

type Catalog map[uint8]Model

func (c Catalog) Lookup(selector uint8) (Model, bool) {
	m, ok := c[selector]
	return m, ok
}

func (c Catalog) Selectors() []uint8 {
	out := make([]uint8, 0, len(c))
	for sel := range c {
		out = append(out, sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UC81xx style controllers: DTM1/DTM2 channels, busy low.
func uc(sel uint8, title string, secondary bool) Model {
	m := Model{
		Selector:  sel,
		Title:     title,
		First:     0x10,
		Next:      NoCode,
		Refresh:   0x12,
		Secondary: secondary,
		BusyLow:   true,
	}
	if secondary {
		m.Next = 0x13
	}
	return m
}

// SSD16xx style controllers: BW RAM then RED RAM, busy high.
func ssd(sel uint8, title string, secondary bool) Model {
	m := Model{
		Selector:  sel,
		Title:     title,
		First:     0x24,
		Next:      NoCode,
		Refresh:   0x20,
		Secondary: secondary,
	}
	if secondary {
		m.Next = 0x26
	}
	return m
}

func build(models ...Model) Catalog {
	c := make(Catalog, len(models))
	for _, m := range models {
		c[m.Selector] = m
	}
	return c
}

var Default = build(
	ssd(0, "1.54 inch", false),
	uc(1, "1.54 inch b", true),
	uc(2, "1.54 inch c", true),
	ssd(3, "2.13 inch", false),
	uc(4, "2.13 inch b", true),
	uc(5, "2.13 inch c", true),
	uc(6, "2.13 inch d", false),
	uc(7, "2.7 inch", false),
	func() Model {
		m := uc(8, "2.7 inch b", true)
		m.Invert = true
		return m
	}(),
	ssd(9, "2.9 inch", false),
	uc(10, "2.9 inch b", true),
	uc(11, "2.9 inch c", true),
	uc(12, "2.9 inch d", false),
	uc(13, "4.2 inch", false),
	uc(14, "4.2 inch b", true),
	uc(15, "4.2 inch c", true),
	uc(16, "5.83 inch", false),
	uc(17, "5.83 inch b", true),
	uc(18, "5.83 inch c", true),
	uc(19, "7.5 inch", false),
	uc(20, "7.5 inch b", true),
	uc(21, "7.5 inch c", true),
	uc(22, "7.5 inch V2", false),
	uc(23, "7.5 inch b V2", true),
	ssd(24, "7.5 inch HD", false),
	uc(25, "5.65 inch f", false),
	ssd(26, "7.5 inch HD b", true),
	ssd(27, "3.7 inch", false),
	ssd(28, "2.66 inch", false),
	uc(29, "5.83 inch b V2", true),
	ssd(30, "2.9 inch b V3", true),
	ssd(31, "1.54 inch b V2", true),
	ssd(32, "2.13 inch b V3", true),
	ssd(33, "2.9 inch V2", false),
	ssd(Alternating, "4.2 inch b V2", true),
	ssd(35, "2.66 inch b", true),
	uc(36, "5.83 inch V2", false),
	uc(37, "4.01 inch f", false),
	ssd(38, "2.7 inch b V2", true),
)

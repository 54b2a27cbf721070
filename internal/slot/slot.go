// Package slot names the two firmware slots of the dual-slot field-update
// subsystem: their flash addresses, sizes, erase-sector lists, and the
// "does this address belong to slot X" predicate. Everything here is a
// compile-time constant for the reference hardware; there is no runtime
// state and no failure mode.
package slot

import "golang.org/x/exp/slices"

// Slot identifies one of the two firmware images.
type Slot uint8

const (
	A Slot = iota
	B
)

// Reference-hardware flash layout (STM32F4-class, 512 KiB internal flash).
const (
	BaseA = uint32(0x08010000)
	BaseB = uint32(0x08040000)

	// Size is the usable size of each slot; both slots are equal-sized and
	// aligned to the underlying flash erase granularity.
	Size = 192 * 1024

	// smallSectorSize and sectorSize are the erase units backing the slots.
	// The reference part's sector map puts a 64 KiB sector (4) and a
	// 128 KiB sector (5) under slot A, and two 128 KiB sectors (6, 7) under
	// slot B; Size (192 KiB) is exactly slot A's two sectors and fits
	// within slot B's, matching the vendor's sector table rather than an
	// idealized power-of-two layout.
	smallSectorSize = 64 * 1024
	sectorSize      = 128 * 1024
)

// sector is one erase unit: its own base address and size, independent of
// slot boundaries (sector sizes on STM32F4 parts are not uniform, even
// within one slot).
type sector struct {
	Base uint32
	Size uint32
}

var sectorsA = []sector{{Base: BaseA, Size: smallSectorSize}, {Base: BaseA + smallSectorSize, Size: sectorSize}}
var sectorsB = []sector{{Base: BaseB, Size: sectorSize}, {Base: BaseB + sectorSize, Size: sectorSize}}

// String implements fmt.Stringer, returning the on-wire display form used
// by the Info response and the host CLI ("SLOT0"/"SLOT1").
func (s Slot) String() string {
	if s == B {
		return "SLOT1"
	}
	return "SLOT0"
}

// Parse decodes the display string produced by String. It reports ok=false
// for any input other than exactly "SLOT0" or "SLOT1".
func Parse(s string) (slot Slot, ok bool) {
	switch s {
	case "SLOT0":
		return A, true
	case "SLOT1":
		return B, true
	default:
		return 0, false
	}
}

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == A {
		return B
	}
	return A
}

// BaseAddress returns the slot's first flash address.
func (s Slot) BaseAddress() uint32 {
	if s == A {
		return BaseA
	}
	return BaseB
}

// Size returns the slot's usable size in bytes. Both slots are the same
// size; the method exists on Slot for symmetry with BaseAddress.
func (s Slot) Size() uint32 {
	return Size
}

// Sectors returns the erase units covering the slot, in ascending address
// order.
func (s Slot) Sectors() []sector {
	if s == A {
		return sectorsA
	}
	return sectorsB
}

// Contains reports whether addr lies within [base, base+size) for the slot.
func (s Slot) Contains(addr uint32) bool {
	base := s.BaseAddress()
	return addr >= base && addr < base+s.Size()
}

// containsSector reports whether the sector list for the slot includes one
// starting at base — used by tests to assert slot/sector consistency
// without duplicating the sector tables.
func (s Slot) containsSector(base uint32) bool {
	return slices.ContainsFunc(s.Sectors(), func(sec sector) bool { return sec.Base == base })
}

// Package bootrecord implements the Boot Configuration Record (BCR): the
// magic+version+active-slot+CRC32 structure persisted in a dedicated flash
// sector, read and validated at boot, and rewritten atomically whenever the
// active slot changes.
package bootrecord

import (
	"encoding/binary"

	"aqmon/fieldupdate/internal/flashio"
	"aqmon/fieldupdate/internal/slot"
)

const (
	// Magic marks a sector as holding a record at all; its absence means
	// the sector has never been written (or was erased back to 0xFF).
	Magic = uint32(0xFEEDC0DE)

	// Version is the current record-schema version.
	Version = uint32(0)

	// Address is the boot-config sector's base address on the reference
	// hardware, distinct from both firmware slots and from the bootloader.
	Address = uint32(0x0800C000)

	// SectorSize is the erase unit backing the record.
	SectorSize = 16 * 1024

	// encodedSize is the number of bytes the record occupies on flash.
	encodedSize = 16
)

// Record is the in-memory, decoded form of the boot configuration record.
type Record struct {
	Version    uint32
	ActiveSlot slot.Slot
}

// Default is the record synthesized when no valid record is found: slot A
// active, schema version 0. Spec.md requires the chooser to rewrite this
// in place before continuing, so that first boot after manufacture (or
// after record corruption) self-heals.
func Default() Record {
	return Record{Version: Version, ActiveSlot: slot.A}
}

// Read decodes and validates the record at Address. It returns ok=false —
// not an error — if either the magic or the checksum does not match; an
// invalid record is an expected, recoverable condition, not a fault.
func Read(r flashio.Reader, crc flashio.CRC32) (rec Record, ok bool) {
	var buf [encodedSize]byte
	if err := r.ReadFlash(Address, buf[:]); err != nil {
		return Record{}, false
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Record{}, false
	}

	checksum := binary.LittleEndian.Uint32(buf[12:16])
	if crc.Checksum(buf[0:12]) != checksum {
		return Record{}, false
	}

	version := binary.LittleEndian.Uint32(buf[4:8])
	activeRaw := binary.LittleEndian.Uint32(buf[8:12])
	active := slot.A
	if activeRaw == 1 {
		active = slot.B
	} else if activeRaw != 0 {
		return Record{}, false
	}

	return Record{Version: version, ActiveSlot: active}, true
}

// Encode produces the 16-byte on-flash image of rec, magic and checksum
// included. It is exported so tests (and Write) can compute the same
// bytes that will be programmed.
func Encode(rec Record, crc flashio.CRC32) [encodedSize]byte {
	var buf [encodedSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], rec.Version)
	activeRaw := uint32(0)
	if rec.ActiveSlot == slot.B {
		activeRaw = 1
	}
	binary.LittleEndian.PutUint32(buf[8:12], activeRaw)
	binary.LittleEndian.PutUint32(buf[12:16], crc.Checksum(buf[0:12]))
	return buf
}

// writerEraser is the subset of flashio.Flash that Write needs.
type writerEraser interface {
	flashio.Writer
	flashio.Eraser
}

// Write erases the whole record sector and programs the 16-byte image in
// one operation; the record is never partially written. A failure here is
// fatal for this reset — the caller (bootloader or application) logs and
// moves on rather than retrying.
func Write(rec Record, w writerEraser, crc flashio.CRC32) error {
	if err := w.EraseSector(Address, SectorSize); err != nil {
		return err
	}
	buf := Encode(rec, crc)
	return w.WriteFlash(Address, buf[:])
}

// SwapActiveSlot returns a copy of rec with the active slot flipped. It
// mutates nothing in flash; the caller must call Write to persist the
// change — this is an in-memory mutation only, leaving the record
// unpersisted until the caller writes it.
func (rec Record) SwapActiveSlot() Record {
	rec.ActiveSlot = rec.ActiveSlot.Other()
	return rec
}

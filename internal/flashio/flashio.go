// Package flashio defines the hardware capability interfaces the boot
// configuration record, the chooser, and the update manager program
// against: flash read/program/erase, a hardware CRC engine, and the
// diagnostic UART. The tinygo-tagged files in this package implement them
// against real STM32F4 registers; fake.go implements them in plain memory
// so the decision logic in internal/bootrecord, internal/chooser, and
// internal/updatemgr can be exercised by `go test` on a workstation,
// splitting tinygo-only hardware files from `!tinygo` stub/test
// counterparts.
package flashio

// Reader reads raw bytes out of flash.
type Reader interface {
	ReadFlash(addr uint32, dst []byte) error
}

// Writer programs raw bytes into flash. The target range must already be
// erased; Writer does not erase implicitly.
type Writer interface {
	WriteFlash(addr uint32, data []byte) error
}

// Eraser erases one sector. addr must be a sector base address.
type Eraser interface {
	EraseSector(addr uint32, size uint32) error
}

// Flash composes the three flash capabilities the core needs.
type Flash interface {
	Reader
	Writer
	Eraser
}

// CRC32 computes the hardware CRC32 checksum over data. The boot
// configuration record's checksum field is defined in terms of whatever
// CRC engine the implementor wires in here; the write path and the
// read-side verification path must agree, which is why both go through
// this single interface rather than two separate computations.
type CRC32 interface {
	Checksum(data []byte) uint32
}

// UART is the diagnostic output the chooser flushes before jumping to an
// image, and the logger ambient-stack component writes structured events
// to.
type UART interface {
	WriteString(s string) (int, error)
	Flush() error
}

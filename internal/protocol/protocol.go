// Package protocol is the pure encode/decode layer for the device control
// protocol: little-endian commands, memory-region descriptors, and status
// codes, plus the framing rules for length-prefixed writes. Nothing here
// touches a socket or flash; internal/updatemgr is the component that
// drives I/O against this codec.
package protocol

import "encoding/binary"

// Command is the little-endian 32-bit opcode that begins every request.
type Command uint32

const (
	Info               Command = 1
	ReadMemory         Command = 2
	WriteMemory        Command = 3
	EraseMemory        Command = 4
	CompleteAndReboot  Command = 5
)

// HasRegion reports whether this command's request carries a trailing
// MemoryRegion descriptor — the update manager uses this to decide
// whether to wait for 12 bytes (4 opcode + 8 region) before consuming.
func (c Command) HasRegion() bool {
	return c == ReadMemory || c == WriteMemory || c == EraseMemory
}

// FromLEBytes decodes a 4-byte little-endian opcode. It needs at least 4
// bytes and returns ok=false otherwise; any numeric value decodes to a
// Command (including values with no named constant — callers treat those
// as Unknown when dispatching).
func FromLEBytes(b []byte) (cmd Command, ok bool) {
	if len(b) < 4 {
		return 0, false
	}
	return Command(binary.LittleEndian.Uint32(b[0:4])), true
}

// ToLEBytes encodes the opcode as 4 little-endian bytes.
func (c Command) ToLEBytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	return b
}

// StatusCode is the little-endian 32-bit response code that precedes any
// response body.
type StatusCode uint32

const (
	Success                 StatusCode = 0
	UnknownCommand          StatusCode = 1
	InvalidAddress          StatusCode = 2
	LengthNotMultiple4      StatusCode = 3
	LengthTooLong           StatusCode = 4
	DataLengthIncorrect     StatusCode = 5
	EraseError              StatusCode = 6
	WriteError              StatusCode = 7
	FlashError              StatusCode = 8
	NetworkError            StatusCode = 9
	InternalError           StatusCode = 10
	CommandLengthIncorrect  StatusCode = 11
)

// StatusFromLEBytes decodes a 4-byte little-endian status code.
func StatusFromLEBytes(b []byte) (code StatusCode, ok bool) {
	if len(b) < 4 {
		return 0, false
	}
	return StatusCode(binary.LittleEndian.Uint32(b[0:4])), true
}

// ToLEBytes encodes the status code as 4 little-endian bytes.
func (s StatusCode) ToLEBytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(s))
	return b
}

func (s StatusCode) String() string {
	switch s {
	case Success:
		return "Success"
	case UnknownCommand:
		return "UnknownCommand"
	case InvalidAddress:
		return "InvalidAddress"
	case LengthNotMultiple4:
		return "LengthNotMultiple4"
	case LengthTooLong:
		return "LengthTooLong"
	case DataLengthIncorrect:
		return "DataLengthIncorrect"
	case EraseError:
		return "EraseError"
	case WriteError:
		return "WriteError"
	case FlashError:
		return "FlashError"
	case NetworkError:
		return "NetworkError"
	case InternalError:
		return "InternalError"
	case CommandLengthIncorrect:
		return "CommandLengthIncorrect"
	default:
		return "Unknown"
	}
}

// MaxChunkLength is the protocol-defined ceiling on a single MemoryRegion's
// length, for both reads and writes: a WriteMemory region's whole payload
// must fit within it, however many TCP segments that payload arrives in.
const MaxChunkLength = 1024

// MemoryRegion describes an address range for ReadMemory, WriteMemory, and
// EraseMemory.
type MemoryRegion struct {
	Address uint32
	Length  uint32
}

// RegionFromLEBytes decodes an 8-byte little-endian MemoryRegion.
func RegionFromLEBytes(b []byte) (r MemoryRegion, ok bool) {
	if len(b) < 8 {
		return MemoryRegion{}, false
	}
	return MemoryRegion{
		Address: binary.LittleEndian.Uint32(b[0:4]),
		Length:  binary.LittleEndian.Uint32(b[4:8]),
	}, true
}

// ToLEBytes encodes the region as 8 little-endian bytes: address then
// length.
func (r MemoryRegion) ToLEBytes() [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], r.Address)
	binary.LittleEndian.PutUint32(b[4:8], r.Length)
	return b
}

// CheckLength validates the region's length in isolation (not its address):
// non-zero, a multiple of 4, and no larger than MaxChunkLength. Address
// validation against the inactive slot is the caller's job (internal
// /updatemgr and, ultimately, the Device capability implementor) — this
// check is the cheap, address-independent pre-filter.
func (r MemoryRegion) CheckLength() (StatusCode, bool) {
	if r.Length == 0 {
		return DataLengthIncorrect, false
	}
	if r.Length > MaxChunkLength {
		return LengthTooLong, false
	}
	if r.Length%4 != 0 {
		return LengthNotMultiple4, false
	}
	return Success, true
}

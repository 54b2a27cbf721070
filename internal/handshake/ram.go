//go:build tinygo

package handshake

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

// ramBase is the first word of SRAM on the reference MCU; update_pending
// and update_valid occupy the two consecutive words there.
const ramBase = uintptr(0x20000000)

// RAMWords binds the handshake words to the fixed SRAM address. It
// survives warm resets (the bootloader and application never zero-init
// this region) but not power loss: the BCR on flash and the handshake in
// RAM deliberately have different persistence guarantees.
type RAMWords struct{}

// NewRAM returns a Flags backed by the fixed SRAM address.
func NewRAM() Flags {
	return New(RAMWords{})
}

func wordPtr(i int) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(ramBase + uintptr(i)*4))
}

func (RAMWords) get(i int) uint32 {
	return wordPtr(i).Get()
}

func (RAMWords) set(i int, v uint32) {
	mask := arm.DisableInterrupts()
	wordPtr(i).Set(v)
	arm.EnableInterrupts(mask)
}

func (RAMWords) getAndClear(i int) uint32 {
	mask := arm.DisableInterrupts()
	p := wordPtr(i)
	v := p.Get()
	p.Set(0)
	arm.EnableInterrupts(mask)
	return v
}

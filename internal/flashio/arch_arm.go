//go:build tinygo

package flashio

import (
	"device/arm"
	"unsafe"
)

// disableInterrupts masks IRQs for the duration of a flash operation and
// returns the previous PRIMASK so the caller can restore it, the same
// critical-section discipline as inline cpsid/cpsie assembly around ROM
// calls.
func disableInterrupts() uintptr {
	mask := arm.DisableInterrupts()
	return uintptr(mask)
}

func restoreInterrupts(mask uintptr) {
	arm.EnableInterrupts(uint32(mask))
}

func unsafeFlashPointer(addr uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

//go:build tinygo

package main

import "unsafe"

// aircrAddress is the Cortex-M4 Application Interrupt and Reset Control
// Register (SCB_AIRCR). Writing VECTKEY with SYSRESETREQ set requests a
// full system reset, the same class of operation internal/flashio's
// hw_stm32f4.go performs directly against SCB/FLASH registers rather than
// through a generic machine.* reset call.
const aircrAddress = uintptr(0xE000ED0C)

const (
	aircrVectKey      = 0x05FA << 16
	aircrSysResetReq  = 1 << 2
)

// softReset requests a Cortex-M system reset. It never returns.
func softReset() {
	aircr := (*uint32)(unsafe.Pointer(aircrAddress))
	*aircr = aircrVectKey | aircrSysResetReq
	for {
	}
}

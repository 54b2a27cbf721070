//go:build tinygo

package main

import (
	"device/arm"
	"unsafe"
)

// vtorAddress is the Cortex-M4 Vector Table Offset Register (SCB_VTOR),
// per the ARMv7-M architecture reference manual. Relocating it to the
// chosen slot's base is what makes that slot's own interrupt and fault
// handlers active after the jump, rather than the bootloader's.
const vtorAddress = uintptr(0xE000ED08)

// vectorVerifier reads a candidate image's initial stack pointer and
// reset vector directly out of flash, the same raw-pointer access
// internal/flashio's hw_stm32f4.go uses for ReadFlash.
type vectorVerifier struct{}

func (vectorVerifier) ReadVectorTable(base uint32) (stackPointer, resetVector uint32, err error) {
	table := (*[2]uint32)(unsafe.Pointer(uintptr(base)))
	return table[0], table[1], nil
}

// jumper performs the standard Cortex-M bootloader handoff: relocate the
// vector table, load the target's initial stack pointer into MSP, and
// branch to its reset vector. This never returns.
type jumper struct{}

func (jumper) Jump(targetBase uint32) {
	table := (*[2]uint32)(unsafe.Pointer(uintptr(targetBase)))
	sp := table[0]
	rv := table[1]

	mask := arm.DisableInterrupts()
	_ = mask // interrupts are intentionally never restored; the target image configures its own

	vtor := (*uint32)(unsafe.Pointer(vtorAddress))
	*vtor = targetBase

	arm.AsmFull(
		"msr msp, {sp}\nbx {rv}",
		map[string]interface{}{"sp": sp, "rv": rv},
	)
}

package chooser

import "aqmon/fieldupdate/internal/flashio"

// Jumper performs the architecture-specific "bootload" jump: load the
// target image's stack pointer and branch to its reset vector. It never
// returns on success.
type Jumper interface {
	Jump(targetBase uint32)
}

// Verifier reads the would-be stack pointer and reset vector out of a
// candidate image without committing to anything.
type Verifier interface {
	ReadVectorTable(base uint32) (stackPointer, resetVector uint32, err error)
}

// BootSlot performs the "boot slot X" sequence: flush and quiesce the
// diagnostic UART, sanity-check the target image's
// vector table, and jump. If the target fails the sanity check, BootSlot
// returns a non-nil error instead of jumping — the caller's only
// reasonable response is to spin and let the independent watchdog reset
// the MCU, since jumping into garbage is worse than an endless loop.
func BootSlot(targetBase, targetSize uint32, uart flashio.UART, verifier Verifier, jumper Jumper, watchdogFeed func()) error {
	if uart != nil {
		uart.WriteString("chooser:boot slot at " + hex32(targetBase) + "\n")
		uart.Flush()
	}

	sp, rv, err := verifier.ReadVectorTable(targetBase)
	if err != nil {
		return err
	}
	if rv < targetBase || rv >= targetBase+targetSize {
		return errOutOfRange
	}
	_ = sp // stack pointer is read for completeness; only the reset vector gates the jump

	if watchdogFeed != nil {
		watchdogFeed()
	}
	jumper.Jump(targetBase)
	return nil // unreachable on real hardware; present for testability
}

var errOutOfRange = bootErr("chooser: target reset vector lies outside its own image")

type bootErr string

func (e bootErr) Error() string { return string(e) }

func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	b := [10]byte{'0', 'x'}
	for i := 9; i >= 2; i-- {
		b[i] = digits[v&0xf]
		v >>= 4
	}
	return string(b[:])
}

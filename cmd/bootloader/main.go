//go:build tinygo

// Command bootloader is stage-1: the first code to run after any reset. It
// never starts a scheduler, never opens a socket, and never touches
// anything but flash, RAM and the diagnostic UART. Its entire job is to
// read the boot configuration record, take the handshake flags exactly
// once, decide which slot to boot per internal/chooser's truth table, and
// jump.
package main

import (
	"machine"

	"aqmon/fieldupdate/internal/bootrecord"
	"aqmon/fieldupdate/internal/chooser"
	"aqmon/fieldupdate/internal/flashio"
	"aqmon/fieldupdate/internal/handshake"
	"aqmon/fieldupdate/internal/lastcause"
	"aqmon/fieldupdate/internal/resetcause"
	"aqmon/fieldupdate/internal/slot"
)

func main() {
	uart := flashio.NewHW(machine.Serial)
	crc := flashio.HWCRC32{}
	flags := handshake.NewRAM()

	// The reset cause register and the handshake words must each be read
	// (and cleared) exactly once per reset. This is the only place
	// either is touched.
	cause := resetcause.Read()
	lastcause.NewRAM().Set(cause.Raw)
	pending := flags.TakePending()
	valid := flags.TakeValid()

	rec, ok := bootrecord.Read(uart, crc)
	if !ok {
		// No valid record: self-heal by writing the default (slot A
		// active) before continuing.
		rec = bootrecord.Default()
		if err := bootrecord.Write(rec, uart, crc); err != nil {
			uart.WriteString("chooser:record write failed: " + err.Error() + "\n")
		}
	}

	decision := chooser.Decide(pending, valid, cause.Cause, rec.ActiveSlot)
	if decision.Persist {
		rec.ActiveSlot = decision.Target
		if err := bootrecord.Write(rec, uart, crc); err != nil {
			uart.WriteString("chooser:record write failed: " + err.Error() + "\n")
		}
	}

	uart.WriteString("chooser:reset cause=" + cause.Cause.String() + "\n")
	uart.Flush()

	target := decision.Target
	err := chooser.BootSlot(target.BaseAddress(), target.Size(), uart, vectorVerifier{}, jumper{}, feedWatchdog)
	if err != nil {
		// A corrupt or missing image in the chosen slot is unrecoverable
		// from here: log and spin until the independent watchdog resets
		// the MCU, rather than jump into garbage.
		uart.WriteString("chooser:boot failed: " + err.Error() + "\n")
		uart.Flush()
		for {
		}
	}
}

func feedWatchdog() {
	machine.Watchdog.Update()
}

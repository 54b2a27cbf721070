//go:build tinygo

package main

import (
	"aqmon/fieldupdate/internal/bootrecord"
	"aqmon/fieldupdate/internal/flashio"
	"aqmon/fieldupdate/internal/handshake"
	"aqmon/fieldupdate/internal/protocol"
	"aqmon/fieldupdate/internal/resetcause"
	"aqmon/fieldupdate/internal/slot"
	"aqmon/fieldupdate/internal/updatemgr"
)

// device is the updatemgr.Device implementation for real hardware: flash
// access goes through flashio.HW, the trial-boot/commit handshake goes
// through internal/handshake, and the active slot comes from the boot
// configuration record read once at startup.
//
// Address validation here is authoritative (per internal/updatemgr's
// doc comment, the manager's own checks are a cheap pre-filter only) —
// every method re-derives the inactive slot and refuses anything outside
// it, independent of what the manager already checked.
type device struct {
	flash  flashio.Flash
	flags  handshake.Flags
	record bootrecord.Record
	crc    flashio.CRC32
	static updatemgr.DeviceInfo
}

func newDevice(flash flashio.Flash, crc flashio.CRC32, flags handshake.Flags, record bootrecord.Record, static updatemgr.DeviceInfo) *device {
	return &device{flash: flash, flags: flags, record: record, crc: crc, static: static}
}

func (d *device) Info() updatemgr.DeviceInfo {
	info := d.static
	info.ActiveBootSlot = d.record.ActiveSlot
	return info
}

// PerformReboot resets without touching the handshake flags: used when
// CompleteAndReboot is issued outside an update (update_in_progress was
// never set), so the device simply restarts into the same active slot.
func (d *device) PerformReboot() {
	softReset()
}

// CompleteUpdateAndPerformReboot arms a trial boot of the slot that was
// just written (update_pending, not update_valid) and resets. The stage-1
// chooser observes (pending=true, valid=false, SoftwareReset) and boots
// the inactive slot without persisting — see internal/chooser's decision
// table. Only if that trial's own self-test later calls set_valid and
// resets again does the swap get committed to the boot configuration
// record.
func (d *device) CompleteUpdateAndPerformReboot() {
	d.flags.SetPending()
	softReset()
}

func (d *device) ReadMemory(r protocol.MemoryRegion) ([]byte, protocol.StatusCode) {
	if !d.inactive().Contains(r.Address) || !d.inactive().Contains(r.Address+r.Length-1) {
		return nil, protocol.InvalidAddress
	}
	buf := make([]byte, r.Length)
	if err := d.flash.ReadFlash(r.Address, buf); err != nil {
		return nil, protocol.FlashError
	}
	return buf, protocol.Success
}

func (d *device) WriteMemory(r protocol.MemoryRegion, data []byte) protocol.StatusCode {
	if !d.inactive().Contains(r.Address) || !d.inactive().Contains(r.Address+uint32(len(data))-1) {
		return protocol.InvalidAddress
	}
	if err := d.flash.WriteFlash(r.Address, data); err != nil {
		return protocol.WriteError
	}
	return protocol.Success
}

// EraseMemory erases every sector of the inactive slot, in order. r must
// exactly match the inactive slot's base and size; the manager's
// handleErase already enforces this, but it is re-checked here since this
// method is the authoritative check.
func (d *device) EraseMemory(r protocol.MemoryRegion) protocol.StatusCode {
	inactive := d.inactive()
	if r.Address != inactive.BaseAddress() || r.Length != inactive.Size() {
		return protocol.InvalidAddress
	}
	for _, sec := range inactive.Sectors() {
		if err := d.flash.EraseSector(sec.Base, sec.Size); err != nil {
			return protocol.EraseError
		}
	}
	return protocol.Success
}

func (d *device) inactive() slot.Slot {
	return d.record.ActiveSlot.Other()
}

// resetReasonString decodes a raw RCC_CSR value the same way
// internal/resetcause does, for the Info response's reset_reason field.
func resetReasonString(raw uint32) string {
	return resetcause.Decode(raw).Cause.String()
}

//go:build tinygo

package flashio

import (
	"device/stm32"
	"errors"
	"machine"
	"runtime/volatile"
)

// Flash key sequence and status bits, per RM0090 §3.6 (STM32F4 embedded
// flash controller). Pokes the MCU's flash controller registers directly
// rather than going through a generic machine.Flash abstraction tuned for
// a different part.
const (
	flashKey1 = 0x45670123
	flashKey2 = 0xCDEF89AB

	flashSRBusy = 1 << 16
	flashCRPGAERR = 1 << 6 // programming alignment error
	flashCRPGPERR = 1 << 5 // programming parallelism error
	flashCRPGSERR = 1 << 4 // sequence error
	flashCRWRPERR = 1 << 4 // write protection error (shared bit on some lines; masked below)
)

// HW is the real flash/CRC/UART capability set for the reference STM32F4
// target. Its methods disable interrupts for the duration of each flash
// operation, the same critical-section discipline used around ROM calls.
type HW struct {
	uart *machine.UART
}

// NewHW wires the hardware flash controller, CRC unit and diagnostic UART.
func NewHW(uart *machine.UART) *HW {
	return &HW{uart: uart}
}

func (h *HW) ReadFlash(addr uint32, dst []byte) error {
	src := (*[1 << 28]byte)(unsafeFlashPointer(addr))[: len(dst) : len(dst)]
	copy(dst, src)
	return nil
}

func (h *HW) WriteFlash(addr uint32, data []byte) error {
	if len(data)%4 != 0 {
		return errors.New("flashio: write length must be a multiple of 4")
	}
	mask := disableInterrupts()
	defer restoreInterrupts(mask)

	unlock()
	defer lock()

	for stm32.FLASH.SR.Get()&flashSRBusy != 0 {
	}

	// Program in 32-bit parallelism, one word at a time.
	stm32.FLASH.CR.Set((2 << 8) | 1) // PSIZE=x32, PG=1
	for i := 0; i < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		dst := (*volatile.Register32)(unsafeFlashPointer(addr + uint32(i)))
		dst.Set(word)
		for stm32.FLASH.SR.Get()&flashSRBusy != 0 {
		}
		if sr := stm32.FLASH.SR.Get(); sr&(flashCRPGAERR|flashCRPGPERR|flashCRPGSERR) != 0 {
			stm32.FLASH.CR.Set(0)
			return errors.New("flashio: flash program error")
		}
	}
	stm32.FLASH.CR.Set(0)
	return nil
}

func (h *HW) EraseSector(addr uint32, size uint32) error {
	sector, err := sectorIndex(addr)
	if err != nil {
		return err
	}
	mask := disableInterrupts()
	defer restoreInterrupts(mask)

	unlock()
	defer lock()

	for stm32.FLASH.SR.Get()&flashSRBusy != 0 {
	}
	stm32.FLASH.CR.Set((uint32(sector) << 3) | (1 << 1) | (1 << 16)) // SNB, SER, START
	for stm32.FLASH.SR.Get()&flashSRBusy != 0 {
	}
	stm32.FLASH.CR.Set(0)
	return nil
}

func (h *HW) WriteString(s string) (int, error) {
	if h.uart == nil {
		return 0, errors.New("flashio: no uart configured")
	}
	return h.uart.Write([]byte(s))
}

func (h *HW) Flush() error {
	return nil
}

// HWCRC32 drives the STM32F4's dedicated CRC peripheral (IEEE 802.3
// polynomial, fixed at reset; the part has no programmable-polynomial
// variant). bootrecord computes its checksum the same way on read (see
// flashio.CRC32IEEE, used only in !tinygo tests) so both sides agree.
type HWCRC32 struct{}

func (HWCRC32) Checksum(data []byte) uint32 {
	stm32.CRC.CR.Set(1) // RESET
	for i := 0; i+4 <= len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		stm32.CRC.DR.Set(word)
	}
	return stm32.CRC.DR.Get()
}

func unlock() {
	stm32.FLASH.KEYR.Set(flashKey1)
	stm32.FLASH.KEYR.Set(flashKey2)
}

func lock() {
	stm32.FLASH.CR.SetBits(1 << 31)
}

// sectorIndex maps an absolute flash address to the STM32F4 sector number
// the erase-control register expects. Only the four application-slot
// sectors and the boot-config sector are ever erased by this firmware, so
// the table is intentionally short rather than a general-purpose part
// description.
func sectorIndex(addr uint32) (int, error) {
	switch addr {
	case 0x08010000:
		return 4, nil
	case 0x08020000:
		return 5, nil
	case 0x08040000:
		return 6, nil
	case 0x08060000:
		return 7, nil
	case 0x0800C000:
		return 3, nil
	default:
		return 0, errors.New("flashio: address does not start a known sector")
	}
}

// Package resetcause decodes the MCU's reset-status register into the sum
// type the stage-1 chooser's decision table is driven by.
package resetcause

// Cause enumerates why the MCU last reset.
type Cause uint8

const (
	PowerOn Cause = iota
	Pin
	Brownout
	Software
	IndependentWatchdog
	WindowWatchdog
	LowPower
	Unknown
)

func (c Cause) String() string {
	switch c {
	case PowerOn:
		return "PowerOn"
	case Pin:
		return "Pin"
	case Brownout:
		return "Brownout"
	case Software:
		return "Software"
	case IndependentWatchdog:
		return "IndependentWatchdog"
	case WindowWatchdog:
		return "WindowWatchdog"
	case LowPower:
		return "LowPower"
	default:
		return "Unknown"
	}
}

// Decoded pairs a Cause with the raw register value that produced it, so
// an Unknown cause is still representable without a separate type per
// caller.
type Decoded struct {
	Cause Cause
	Raw   uint32
}

// RCC_CSR reset-flag bit positions (RM0090 §7.3.23). Several can be set
// simultaneously on real hardware (e.g. a brownout that also trips the
// watchdog); Decode applies a fixed priority order, most specific first,
// reading top-to-bottom until one bit matches.
const (
	bitLowPower            = 1 << 31
	bitWindowWatchdog       = 1 << 30
	bitIndependentWatchdog  = 1 << 29
	bitSoftware             = 1 << 28
	bitPowerOn              = 1 << 27
	bitPin                  = 1 << 26
	bitBrownout             = 1 << 25
)

// Decode interprets the raw reset-status register value into a Cause. It
// does not read or clear any register itself — see Read for that — so it
// can be exercised directly by table-driven tests.
func Decode(raw uint32) Decoded {
	switch {
	case raw&bitLowPower != 0:
		return Decoded{Cause: LowPower, Raw: raw}
	case raw&bitWindowWatchdog != 0:
		return Decoded{Cause: WindowWatchdog, Raw: raw}
	case raw&bitIndependentWatchdog != 0:
		return Decoded{Cause: IndependentWatchdog, Raw: raw}
	case raw&bitSoftware != 0:
		return Decoded{Cause: Software, Raw: raw}
	case raw&bitPowerOn != 0:
		return Decoded{Cause: PowerOn, Raw: raw}
	case raw&bitPin != 0:
		return Decoded{Cause: Pin, Raw: raw}
	case raw&bitBrownout != 0:
		return Decoded{Cause: Brownout, Raw: raw}
	default:
		return Decoded{Cause: Unknown, Raw: raw}
	}
}

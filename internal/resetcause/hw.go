//go:build tinygo

package resetcause

import "device/stm32"

// Read decodes the current reset cause from the RCC CSR register and
// clears it (the RMVF bit), so the next reset starts from a clean
// register. Spec.md requires the cause to be "derived ... and cleared
// after reading" — exactly once, at the top of the chooser.
func Read() Decoded {
	raw := stm32.RCC.CSR.Get()
	d := Decode(raw)
	stm32.RCC.CSR.SetBits(1 << 24) // RMVF: remove reset flags
	return d
}

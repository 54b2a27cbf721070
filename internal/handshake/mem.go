//go:build !tinygo

package handshake

// MemWords is a plain-memory words implementation for tests, standing in
// for the fixed SRAM address real hardware uses.
type MemWords struct {
	v [2]uint32
}

// NewMem returns a Flags backed by ordinary memory.
func NewMem() Flags {
	return New(&MemWords{})
}

func (m *MemWords) get(i int) uint32 { return m.v[i] }
func (m *MemWords) set(i int, v uint32) { m.v[i] = v }
func (m *MemWords) getAndClear(i int) uint32 {
	v := m.v[i]
	m.v[i] = 0
	return v
}

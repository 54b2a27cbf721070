//go:build !tinygo

package lastcause

// MemWord is a plain-memory store for tests.
type MemWord struct {
	v uint32
}

// NewMem returns a Recorder backed by ordinary memory.
func NewMem() Recorder {
	return New(&MemWord{})
}

func (m *MemWord) get() uint32   { return m.v }
func (m *MemWord) set(v uint32) { m.v = v }

// Package fwimage converts a linked ELF firmware image into the raw binary
// a slot expects: the concatenation of .vector_table, .text, .rodata, and
// .data, each zero-padded up to its own required address alignment. This
// runs on the host, never on-device, so it is
// free to use the full standard library's debug/elf — no third-party ELF
// library appears anywhere in the retrieval pack, and debug/elf is the
// idiomatic, only reasonable choice for this.
package fwimage

import (
	"debug/elf"
	"fmt"
)

// sectionOrder is the fixed section sequence, in the order they must
// appear in the flashed image.
var sectionOrder = []string{".vector_table", ".text", ".rodata", ".data"}

// ToRaw reads f's named sections in sectionOrder, padding each with zero
// bytes up to its Addralign boundary (relative to the start of the output
// buffer) before appending its contents, and returns the concatenated
// image. maxSize bounds the result to one slot's capacity; ToRaw returns
// an error rather than silently truncating an oversized image.
func ToRaw(f *elf.File, maxSize int) ([]byte, error) {
	var out []byte
	found := false
	for _, name := range sectionOrder {
		sec := f.Section(name)
		if sec == nil {
			continue
		}
		found = true

		if align := int(sec.Addralign); align > 1 {
			if pad := (align - len(out)%align) % align; pad > 0 {
				out = append(out, make([]byte, pad)...)
			}
		}

		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("fwimage: reading section %s: %w", name, err)
		}
		if sec.Type == elf.SHT_NOBITS {
			// .bss-like sections contribute no file bytes; this guards
			// against a misconfigured linker script naming one of our four
			// sections SHT_NOBITS.
			data = make([]byte, sec.Size)
		}
		out = append(out, data...)

		if len(out) > maxSize {
			return nil, fmt.Errorf("fwimage: image is %d bytes, exceeds slot capacity %d", len(out), maxSize)
		}
	}
	if !found {
		return nil, fmt.Errorf("fwimage: none of %v present in ELF", sectionOrder)
	}
	return out, nil
}

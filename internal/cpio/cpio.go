// Package cpio implements just enough of the "newc" CPIO archive format to
// pack and unpack the host-side release artifact: two pre-linked ELF
// images, one per slot, named agp0.elf/agp1.elf. No
// third-party CPIO library appears anywhere in the retrieval pack, and the
// format itself (a 1980s Unix archive format) has no meaningful modern
// ecosystem alternative worth pulling in for two fixed-name entries, so
// this is implemented directly against stdlib.
package cpio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	magic     = "070701"
	trailer   = "TRAILER!!!"
	headerLen = 110
)

// Entry is one file stored in the archive.
type Entry struct {
	Name string
	Mode uint32
	Data []byte
}

// ErrTruncated is returned by Read when the archive ends before a header
// or body is fully present.
var ErrTruncated = errors.New("cpio: truncated archive")

// Write encodes entries as a newc-format archive, terminated by the
// conventional TRAILER!!! entry.
func Write(w io.Writer, entries []Entry) error {
	for i, e := range entries {
		if err := writeEntry(w, e, i+1); err != nil {
			return err
		}
	}
	return writeEntry(w, Entry{Name: trailer}, len(entries)+1)
}

func writeEntry(w io.Writer, e Entry, ino int) error {
	nameField := e.Name + "\x00"
	header := fmt.Sprintf(
		"%s%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x",
		magic,
		ino,           // c_ino
		e.Mode,        // c_mode
		0,             // c_uid
		0,             // c_gid
		1,             // c_nlink
		0,             // c_mtime
		len(e.Data),   // c_filesize
		0, 0,          // c_devmajor, c_devminor
		0, 0,          // c_rdevmajor, c_rdevminor
		len(nameField), // c_namesize
		0,             // c_check
	)
	if len(header) != headerLen {
		return fmt.Errorf("cpio: internal error: header length %d, want %d", len(header), headerLen)
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, nameField); err != nil {
		return err
	}
	if err := writePad(w, headerLen+len(nameField)); err != nil {
		return err
	}
	if _, err := w.Write(e.Data); err != nil {
		return err
	}
	return writePad(w, len(e.Data))
}

// writePad emits zero bytes to round n up to a 4-byte boundary, per the
// newc format's alignment rule for both header+name and body.
func writePad(w io.Writer, n int) error {
	if pad := (4 - n%4) % 4; pad > 0 {
		_, err := w.Write(make([]byte, pad))
		return err
	}
	return nil
}

// Read decodes a newc-format archive into its entries, stopping at (and
// excluding) the TRAILER!!! entry.
func Read(r io.Reader) ([]Entry, error) {
	br := newByteReader(r)
	var entries []Entry
	for {
		header, err := br.readN(headerLen)
		if err == io.EOF && len(header) == 0 {
			return nil, ErrTruncated // well-formed archives always end in a trailer
		}
		if err != nil {
			return nil, err
		}
		if string(header[0:6]) != magic {
			return nil, fmt.Errorf("cpio: bad magic %q", header[0:6])
		}
		mode := hex32(header[14:22])
		filesize := hex32(header[54:62])
		namesize := hex32(header[94:102])

		nameBuf, err := br.readN(int(namesize))
		if err != nil {
			return nil, ErrTruncated
		}
		name := string(bytes.TrimRight(nameBuf, "\x00"))
		if err := br.skipPad(headerLen + int(namesize)); err != nil {
			return nil, err
		}

		if name == trailer {
			return entries, nil
		}

		data, err := br.readN(int(filesize))
		if err != nil {
			return nil, ErrTruncated
		}
		if err := br.skipPad(int(filesize)); err != nil {
			return nil, err
		}

		entries = append(entries, Entry{Name: name, Mode: mode, Data: data})
	}
}

func hex32(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint32(c-'A') + 10
		}
	}
	return v
}

// byteReader is a thin io.Reader wrapper; readN/skipPad read exact counts
// the way the newc format's fixed-width fields require.
type byteReader struct {
	r io.Reader
}

func newByteReader(r io.Reader) *byteReader { return &byteReader{r: r} }

func (b *byteReader) readN(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(b.r, buf)
	if err != nil {
		return buf[:read], err
	}
	return buf, nil
}

func (b *byteReader) skipPad(n int) error {
	if pad := (4 - n%4) % 4; pad > 0 {
		_, err := b.readN(pad)
		return err
	}
	return nil
}

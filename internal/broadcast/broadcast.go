// Package broadcast implements the generic envelope of the periodic UDP
// measurement broadcast: the tag, sequence number, length, and CRC
// wrapping whatever sensor payload the
// (out-of-scope) sensor tasks produce. The payload's contents are not part
// of this subsystem; this package only frames and validates the envelope.
package broadcast

import (
	"encoding/binary"

	"aqmon/fieldupdate/internal/flashio"
)

// Tag is the 4-byte ASCII marker every broadcast record begins with.
const Tag = "BRDC"

// RecordSize is the fixed on-wire size of the envelope plus payload: a
// fixed 60-byte record.
const RecordSize = 60

// headerSize is Tag(4) + Sequence(4) + Length(4).
const headerSize = 12

// trailerSize is the trailing CRC32.
const trailerSize = 4

// MaxPayload is the largest payload that fits inside RecordSize once the
// header and trailer are accounted for.
const MaxPayload = RecordSize - headerSize - trailerSize

// Envelope is the generic broadcast framing: tag, sequence, payload length,
// and CRC32 over tag+sequence+length+payload. The sensor-reading payload
// itself is out of scope for this subsystem; callers fill Payload with
// whatever bytes their sensor tasks produce.
type Envelope struct {
	Sequence uint32
	Payload  [MaxPayload]byte
	Length   uint32
}

// Encode renders the envelope as a RecordSize-byte little-endian record,
// computing the trailing CRC32 over everything before it.
func (e Envelope) Encode(crc flashio.CRC32) [RecordSize]byte {
	var buf [RecordSize]byte
	copy(buf[0:4], Tag)
	binary.LittleEndian.PutUint32(buf[4:8], e.Sequence)
	binary.LittleEndian.PutUint32(buf[8:12], e.Length)
	n := e.Length
	if n > MaxPayload {
		n = MaxPayload
	}
	copy(buf[headerSize:headerSize+n], e.Payload[:n])
	sum := crc.Checksum(buf[:RecordSize-trailerSize])
	binary.LittleEndian.PutUint32(buf[RecordSize-trailerSize:], sum)
	return buf
}

// Decode parses and validates a RecordSize-byte record: the tag must match
// and the trailing CRC32 must verify. ok is false for anything else,
// including a short buffer.
func Decode(b []byte, crc flashio.CRC32) (e Envelope, ok bool) {
	if len(b) < RecordSize {
		return Envelope{}, false
	}
	if string(b[0:4]) != Tag {
		return Envelope{}, false
	}
	want := binary.LittleEndian.Uint32(b[RecordSize-trailerSize : RecordSize])
	got := crc.Checksum(b[:RecordSize-trailerSize])
	if want != got {
		return Envelope{}, false
	}
	e.Sequence = binary.LittleEndian.Uint32(b[4:8])
	e.Length = binary.LittleEndian.Uint32(b[8:12])
	n := e.Length
	if n > MaxPayload {
		n = MaxPayload
	}
	copy(e.Payload[:n], b[headerSize:headerSize+n])
	return e, true
}

package tokenize

import (
	"encoding/binary"

	"github.com/jkbonfield/gnamec/internal/codecerr"
)

// Descriptors holds the (position, type)-addressed byte streams a
// block's tokens are written into on encode, and read back from on
// decode. slot(p, t) is the single source of truth for addressing;
// every read and write goes through it so the layout stays consistent
// between the two directions.
type Descriptors struct {
	buf    [MaxPositions * MaxTypes][]byte
	cursor [MaxPositions * MaxTypes]int
}

func slot(p int, t Kind) int {
	return (p << 4) | int(t&0x0F)
}

// NewDescriptors returns an empty descriptor set, ready for Encode to
// populate or for a caller to populate from decompressed blobs before
// calling Decode.
func NewDescriptors() *Descriptors {
	return &Descriptors{}
}

// Stream returns the raw bytes written to (p, t), or nil if nothing
// was ever written there. Used by callers wiring this package to the
// meta-codec: each non-empty stream is one independent compression
// unit.
func (d *Descriptors) Stream(p int, t Kind) []byte {
	return d.buf[slot(p, t)]
}

// SetStream installs buf as the (p, t) stream, replacing whatever was
// there (and resetting its read cursor). Used when reconstructing a
// Descriptors from decompressed blobs before decoding.
func (d *Descriptors) SetStream(p int, t Kind, buf []byte) {
	s := slot(p, t)
	d.buf[s] = buf
	d.cursor[s] = 0
}

// Positions reports the number of token positions with any data
// written (the highest written position plus one), so callers can
// iterate (p, t) pairs without scanning the whole fixed-size grid.
func (d *Descriptors) Positions() int {
	for p := MaxPositions - 1; p >= 0; p-- {
		for t := 0; t < MaxTypes; t++ {
			if d.buf[slot(p, Kind(t))] != nil {
				return p + 1
			}
		}
	}
	return 0
}

func (d *Descriptors) writeByte(p int, t Kind, b byte) {
	s := slot(p, t)
	d.buf[s] = append(d.buf[s], b)
}

func (d *Descriptors) writeBytes(p int, t Kind, b []byte) {
	s := slot(p, t)
	d.buf[s] = append(d.buf[s], b...)
}

func (d *Descriptors) writeUint32(p int, t Kind, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	d.writeBytes(p, t, b[:])
}

// writeType appends the type byte for position p's (p, KindNone)
// stream; every token, regardless of kind, writes exactly one of
// these.
func (d *Descriptors) writeType(p int, kind Kind) {
	d.writeByte(p, KindNone, byte(kind))
}

func (d *Descriptors) readByte(p int, t Kind) (byte, error) {
	s := slot(p, t)
	if d.cursor[s] >= len(d.buf[s]) {
		return 0, codecerr.New(codecerr.TruncatedInput, "tokenize: stream exhausted before END")
	}
	b := d.buf[s][d.cursor[s]]
	d.cursor[s]++
	return b, nil
}

func (d *Descriptors) readUint32(p int, t Kind) (uint32, error) {
	s := slot(p, t)
	if d.cursor[s]+4 > len(d.buf[s]) {
		return 0, codecerr.New(codecerr.TruncatedInput, "tokenize: stream exhausted before END")
	}
	v := binary.LittleEndian.Uint32(d.buf[s][d.cursor[s]:])
	d.cursor[s] += 4
	return v, nil
}

// readCString reads a NUL-terminated byte string from (p, KindALPHA),
// matching the wire format encodeAlpha writes.
func (d *Descriptors) readCString(p int) ([]byte, error) {
	s := slot(p, KindALPHA)
	start := d.cursor[s]
	buf := d.buf[s]
	for i := start; i < len(buf); i++ {
		if buf[i] == 0 {
			d.cursor[s] = i + 1
			return buf[start:i], nil
		}
	}
	return nil, codecerr.New(codecerr.TruncatedInput, "tokenize: unterminated alpha string")
}

// readType reads the next type byte for position p, or (KindNone,
// false) if that position's type stream is exhausted. Every line ends
// with an explicit END, so the decoder treats exhaustion as a
// truncated stream.
func (d *Descriptors) readType(p int) (Kind, bool) {
	s := slot(p, KindNone)
	if d.cursor[s] >= len(d.buf[s]) {
		return KindNone, false
	}
	b := d.buf[s][d.cursor[s]]
	d.cursor[s]++
	return Kind(b), true
}

// Package varint implements the little-endian, 7-bits-per-byte variable
// length integer encoding shared by CAT, RLE, X4 and PACK blobs.
package varint

import "github.com/jkbonfield/gnamec/internal/codecerr"

// Put appends the varint encoding of v to dst and returns the result.
func Put(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Get reads a varint starting at buf[0], returning the value and the
// number of bytes consumed. n == 0 signals a truncated buffer.
func Get(buf []byte) (v uint64, n int) {
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
		if shift >= 64 {
			return 0, 0
		}
	}
	return 0, 0
}

// GetErr is Get but returns a codecerr.TruncatedInput error instead of n == 0.
func GetErr(buf []byte) (uint64, int, error) {
	v, n := Get(buf)
	if n == 0 {
		return 0, 0, codecerr.New(codecerr.TruncatedInput, "varint: truncated")
	}
	return v, n, nil
}

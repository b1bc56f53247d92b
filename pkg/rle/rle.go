// Package rle implements the guarded run-length encoding used as one of
// the meta-codec's candidate byte-stream compressors: runs of four or
// more identical bytes collapse to an escape sequence, everything else
// passes through untouched.
package rle

import (
	"github.com/jkbonfield/gnamec/internal/codecerr"
	"github.com/jkbonfield/gnamec/internal/varint"
)

const (
	// Guard is the escape byte. It never appears unescaped in the output.
	Guard = 233

	// MinRun is the shortest run worth escaping; at four repeats the
	// escape (guard + varint + symbol) is never longer than the runs
	// it replaces.
	MinRun = 4
)

// Encode returns the guarded run-length payload for in. The caller is
// responsible for recording len(in) separately (the meta-codec wraps
// this in a tag byte and a varint uncompressed length); Decode needs
// that length back to know where the payload ends.
func Encode(in []byte) []byte {
	out := make([]byte, 0, len(in)+len(in)/8+8)

	last := -1
	runLen := 0
	for _, ub := range in {
		b := int(ub)
		if b == last {
			runLen++
		} else {
			runLen++
			if runLen >= MinRun {
				out = emitRun(out, last, runLen)
			}
			runLen = 0
		}
		if b == Guard {
			out = append(out, Guard, 0)
		} else {
			out = append(out, ub)
		}
		last = b
	}

	runLen++
	if runLen >= MinRun {
		out = emitRun(out, last, runLen)
	}

	return out
}

// emitRun retracts the runLen occurrences of sym already written to out
// (verbatim, or GUARD-escaped if sym is itself the guard byte) and
// replaces them with a single guard/run-length/symbol escape.
func emitRun(out []byte, sym, runLen int) []byte {
	bytesPerOcc := 1
	if sym == Guard {
		bytesPerOcc = 2
	}
	out = out[:len(out)-runLen*bytesPerOcc]
	out = append(out, Guard)
	out = varint.Put(out, uint64(runLen))
	out = append(out, byte(sym))
	return out
}

// Decode reverses Encode, reading exactly the bytes needed to produce
// ulen output bytes from in (in may legitimately contain trailing bytes
// belonging to the caller's framing, which Decode ignores). consumed
// reports how many bytes of in were read, so callers concatenating
// several payloads back to back know where the next one starts.
func Decode(in []byte, ulen int) (out []byte, consumed int, err error) {
	out = make([]byte, 0, ulen)
	i := 0
	for i < len(in) && len(out) < ulen {
		if in[i] != Guard {
			out = append(out, in[i])
			i++
			continue
		}
		i++
		if i >= len(in) {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "rle: truncated guard escape")
		}
		if in[i] == 0 {
			out = append(out, Guard)
			i++
			continue
		}

		v, n := varint.Get(in[i:])
		if n == 0 {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "rle: truncated run length")
		}
		i += n
		if i >= len(in) {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "rle: missing run symbol")
		}
		sym := in[i]
		i++

		if uint64(len(out))+v > uint64(ulen) {
			return nil, 0, codecerr.New(codecerr.BadInput, "rle: run overruns declared length")
		}
		for k := uint64(0); k < v; k++ {
			out = append(out, sym)
		}
	}

	if len(out) != ulen {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "rle: payload shorter than declared length")
	}
	return out, i, nil
}

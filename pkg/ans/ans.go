// Package ans provides entropy coding using rANS (range Asymmetric Numeral
// Systems): static per-block frequency tables, order-0 and order-1 context
// models, and four interleaved coder states per block so that successive
// symbols have no data dependency on each other.
package ans

import (
	"encoding/binary"

	"github.com/jkbonfield/gnamec/internal/codecerr"
)

const (
	// RansL is the lower bound of the renormalisation interval; encoded
	// states live in [RansL, RansL<<16) before a renorm step.
	RansL = 1 << 15

	// ProbBits is the frequency-table precision shared by order-0 and
	// order-1 models: all frequencies for a context sum to ProbScale.
	ProbBits  = 12
	ProbScale = 1 << ProbBits
)

// Order selects the context model used to build frequency tables.
type Order int

const (
	Order0 Order = 0
	Order1 Order = 1
)

// Bound returns a safe upper bound on the compressed size of an in_size
// byte input at the given order, matching the reference implementation's
// rans_compress_bound_4x16 formula used by the rANS length-bound property.
func Bound(size int, order Order) int {
	if order == Order0 {
		return int(1.05*float64(size)) + 257*3 + 4
	}
	return int(1.05*float64(size)) + 257*257*3 + 4
}

// --- encoder symbol (reciprocal-multiplication fast path) -----------------

type encSymbol struct {
	xMax     uint32
	rcpFreq  uint32
	bias     uint32
	cmplFreq uint32
	rcpShift uint32
}

func newEncSymbol(start, freq uint32) encSymbol {
	var s encSymbol
	s.xMax = ((RansL >> ProbBits) << 16) * freq
	s.cmplFreq = ProbScale - freq
	if freq < 2 {
		// freq=1 has no exact fixed-point reciprocal; use the dedicated
		// branch described in the rANS reference: rcpFreq = 2^32-1,
		// rcpShift = 0, bias = start + ProbScale - 1.
		s.rcpFreq = ^uint32(0)
		s.rcpShift = 0
		s.bias = start + ProbScale - 1
	} else {
		shift := uint32(0)
		for freq > (uint32(1) << shift) {
			shift++
		}
		rcp := ((uint64(1) << (shift + 31)) + uint64(freq) - 1) / uint64(freq)
		s.rcpFreq = uint32(rcp)
		s.rcpShift = shift - 1
		s.bias = start
	}
	s.rcpShift += 32
	return s
}

// put renormalises r if needed (emitting a 16-bit word backwards from pos)
// and folds the symbol into the state via multiply-high instead of divide.
func (s *encSymbol) put(r *uint32, out []byte, pos *int) {
	x := *r
	if x >= s.xMax {
		*pos -= 2
		binary.LittleEndian.PutUint16(out[*pos:], uint16(x))
		x >>= 16
	}
	q := uint32((uint64(x) * uint64(s.rcpFreq)) >> s.rcpShift)
	*r = x + s.bias + q*s.cmplFreq
}

func decRenorm(r *uint32, in []byte, pos *int) {
	if *r < RansL {
		*r = (*r << 16) | uint32(binary.LittleEndian.Uint16(in[*pos:]))
		*pos += 2
	}
}

// --- frequency-table normalisation -----------------------------------------

// normaliseFreq scales F (indexed by symbol, len 256) so that the non-zero
// entries sum exactly to tot, using a fixed-point multiply and pushing any
// residual onto the largest bucket (cascading into other buckets if the
// largest alone can't absorb a negative residual without going non-positive).
func normaliseFreq(f []int64, size int64, tot int64) {
	if size == 0 {
		return
	}
	tr := (tot<<31)/size + (1 << 30 / size)
	m, M, fsum := int64(0), 0, int64(0)
	for j := 0; j < 256; j++ {
		if f[j] == 0 {
			continue
		}
		if m < f[j] {
			m, M = f[j], j
		}
		f[j] = (f[j] * tr) >> 31
		if f[j] == 0 {
			f[j] = 1
		}
		fsum += f[j]
	}

	adjust := tot - fsum
	switch {
	case adjust > 0:
		f[M] += adjust
	case adjust < 0:
		if f[M] > -adjust {
			f[M] += adjust
		} else {
			adjust += f[M] - 1
			f[M] = 1
			for j := 0; adjust != 0 && j < 256; j++ {
				if f[j] < 2 {
					continue
				}
				var d int64
				if f[j] > -adjust {
					d = adjust
				} else {
					d = 1 - f[j]
				}
				f[j] += d
				adjust -= d
			}
		}
	}
}

// --- sparse frequency-table serialisation ----------------------------------

// encodeFreq writes the order-0 style sparse listing of F (symbol, freq)
// pairs in ascending symbol order, RLE-compressing runs of consecutive
// present symbols and terminating the list with a 0 byte.
func encodeFreq(f []int64) []byte {
	var out []byte
	rle := 0
	for j := 0; j < 256; j++ {
		if f[j] == 0 {
			continue
		}
		if rle > 0 {
			rle--
		} else {
			out = append(out, byte(j))
			if j > 0 && f[j-1] != 0 {
				k := j + 1
				for k < 256 && f[k] != 0 {
					k++
				}
				rle = k - (j + 1)
				out = append(out, byte(rle))
			}
		}
		if f[j] < 128 {
			out = append(out, byte(f[j]))
		} else {
			out = append(out, byte(0x80|(f[j]>>8)), byte(f[j]&0xff))
		}
	}
	out = append(out, 0)
	return out
}

func decodeFreq(buf []byte) (f [256]int64, n int, err error) {
	if len(buf) < 1 {
		return f, 0, codecerr.New(codecerr.TruncatedInput, "ans: empty freq table")
	}
	pos := 0
	j := int(buf[pos])
	pos++
	rle := 0
	for {
		if pos >= len(buf) {
			return f, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated freq table")
		}
		fv := int64(buf[pos])
		pos++
		if fv >= 128 {
			if pos >= len(buf) {
				return f, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated freq table")
			}
			fv = ((fv &^ 128) << 8) | int64(buf[pos])
			pos++
		}
		if j < 0 || j > 255 {
			return f, 0, codecerr.New(codecerr.MalformedTable, "ans: symbol out of range")
		}
		f[j] = fv

		if pos >= len(buf) {
			return f, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated freq table")
		}
		if rle == 0 && j+1 == int(buf[pos]) {
			j = int(buf[pos])
			pos++
			if pos >= len(buf) {
				return f, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated freq table")
			}
			rle = int(buf[pos])
			pos++
		} else if rle > 0 {
			rle--
			j++
		} else {
			j = int(buf[pos])
			pos++
		}
		if j == 0 {
			break
		}
	}
	return f, pos, nil
}

// encodeFreq0 is the symbols-only variant (no frequencies) used to record
// which symbols occur anywhere, for the order-1 alphabet prefix.
func encodeFreq0(present []bool) []byte {
	var out []byte
	rle := 0
	for j := 0; j < 256; j++ {
		if !present[j] {
			continue
		}
		if rle > 0 {
			rle--
			continue
		}
		out = append(out, byte(j))
		if j > 0 && present[j-1] {
			k := j + 1
			for k < 256 && present[k] {
				k++
			}
			rle = k - (j + 1)
			out = append(out, byte(rle))
		}
	}
	out = append(out, 0)
	return out
}

func decodeFreq0(buf []byte) (present [256]bool, n int, err error) {
	if len(buf) < 1 {
		return present, 0, codecerr.New(codecerr.TruncatedInput, "ans: empty order-0 alphabet")
	}
	pos := 0
	j := int(buf[pos])
	pos++
	rle := 0
	for {
		present[j] = true
		if pos >= len(buf) {
			return present, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated alphabet")
		}
		if rle == 0 && j+1 == int(buf[pos]) {
			j = int(buf[pos])
			pos++
			if pos >= len(buf) {
				return present, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated alphabet")
			}
			rle = int(buf[pos])
			pos++
		} else if rle > 0 {
			rle--
			j++
		} else {
			j = int(buf[pos])
			pos++
		}
		if j == 0 {
			break
		}
	}
	return present, pos, nil
}

// encodeFreqD encodes a per-context row relative to the order-0 alphabet f0:
// symbols absent from f0 are skipped entirely, symbols present in f0 but
// zero in this row are zero-run-length compressed.
func encodeFreqD(f0 [256]bool, f []int64) []byte {
	var out []byte
	dz := 0
	for j := 0; j < 256; j++ {
		if !f0[j] {
			continue
		}
		if f[j] != 0 {
			if dz > 0 {
				out = out[:len(out)-(dz-1)]
				out = append(out, byte(dz-1))
				dz = 0
			}
			if f[j] < 128 {
				out = append(out, byte(f[j]))
			} else {
				out = append(out, byte(0x80|(f[j]>>8)), byte(f[j]&0xff))
			}
		} else {
			dz++
			out = append(out, 0)
		}
	}
	if dz > 0 {
		out = out[:len(out)-(dz-1)]
		out = append(out, byte(dz-1))
	}
	return out
}

func decodeFreqD(buf []byte, f0 [256]bool) (f [256]int64, total int64, n int, err error) {
	pos, dz := 0, 0
	for j := 0; j < 256; j++ {
		if !f0[j] {
			continue
		}
		var fv int64
		if dz > 0 {
			dz--
		} else {
			if pos >= len(buf) {
				return f, 0, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 row")
			}
			fv = int64(buf[pos])
			pos++
			if fv >= 128 {
				if pos >= len(buf) {
					return f, 0, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 row")
				}
				fv = ((fv &^ 128) << 8) | int64(buf[pos])
				pos++
			}
			if fv == 0 {
				if pos >= len(buf) {
					return f, 0, 0, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 row")
				}
				dz = int(buf[pos])
				pos++
			}
		}
		f[j] = fv
		total += fv
	}
	return f, total, pos, nil
}

// --- order-0 ----------------------------------------------------------------

// CompressOrder0 compresses in using a single static order-0 frequency
// table and four interleaved coder states. The output is self-contained:
// a 4-byte little-endian uncompressed length, the serialised frequency
// table, then the interleaved rANS payload.
func CompressOrder0(in []byte) ([]byte, error) {
	inSize := len(in)
	if inSize == 0 {
		return make([]byte, 4), nil
	}
	bound := Bound(inSize, Order0)
	out := make([]byte, bound)

	var f [256]int64
	for _, b := range in {
		f[b]++
	}
	normaliseFreq(f[:], int64(inSize), ProbScale)

	var syms [256]encSymbol
	x := uint32(0)
	for j := 0; j < 256; j++ {
		if f[j] != 0 {
			syms[j] = newEncSymbol(x, uint32(f[j]))
			x += uint32(f[j])
		}
	}

	table := encodeFreq(f[:])
	tabSize := 4 + len(table)
	if tabSize > len(out) {
		return nil, codecerr.New(codecerr.ShortBuffer, "ans: bound too small for frequency table")
	}
	copy(out[4:], table)

	body := encodeBackwards4(in, func(sym byte) *encSymbol { return &syms[sym] })
	if tabSize+len(body) > len(out) {
		return nil, codecerr.New(codecerr.ShortBuffer, "ans: bound too small for payload")
	}
	binary.LittleEndian.PutUint32(out[0:], uint32(inSize))
	copy(out[tabSize:], body)
	return out[:tabSize+len(body)], nil
}

// encodeBackwards4 runs the four-state interleaved rANS encode over in,
// walking backwards and returning the flushed byte stream (state[3]
// flushed first, ..., state[0] last, as the reference implementation does).
func encodeBackwards4(in []byte, lookup func(byte) *encSymbol) []byte {
	n := len(in)
	// worst case 2 bytes emitted per input byte plus 16 bytes to flush
	// the four 32-bit states; callers size the real output buffer using
	// Bound, this local buffer only needs to be at least that large.
	buf := make([]byte, 2*n+64)
	pos := len(buf)

	var r0, r1, r2, r3 uint32 = RansL, RansL, RansL, RansL

	tail := n & 3
	switch tail {
	case 3:
		lookup(in[n-1]).put(&r2, buf, &pos)
		lookup(in[n-2]).put(&r1, buf, &pos)
		lookup(in[n-3]).put(&r0, buf, &pos)
	case 2:
		lookup(in[n-1]).put(&r1, buf, &pos)
		lookup(in[n-2]).put(&r0, buf, &pos)
	case 1:
		lookup(in[n-1]).put(&r0, buf, &pos)
	}

	for i := n &^ 3; i > 0; i -= 4 {
		s3 := lookup(in[i-1])
		s2 := lookup(in[i-2])
		s1 := lookup(in[i-3])
		s0 := lookup(in[i-4])
		s3.put(&r3, buf, &pos)
		s2.put(&r2, buf, &pos)
		s1.put(&r1, buf, &pos)
		s0.put(&r0, buf, &pos)
	}

	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r3)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r2)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r1)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r0)

	return buf[pos:]
}

// decTable holds the O(1) symbol/base/freq reverse lookup built from a
// reconstructed frequency table, indexed by state & (ProbScale-1).
type decTable struct {
	ssym  [ProbScale]uint8
	sfreq [ProbScale]uint16
	sbase [ProbScale]uint16
}

func buildDecTable(f []int64) *decTable {
	d := &decTable{}
	x := int64(0)
	for j := 0; j < 256; j++ {
		for y := int64(0); y < f[j]; y++ {
			d.ssym[y+x] = uint8(j)
			d.sfreq[y+x] = uint16(f[j])
			d.sbase[y+x] = uint16(y)
		}
		x += f[j]
	}
	return d
}

// DecompressOrder0 reverses CompressOrder0.
func DecompressOrder0(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, codecerr.New(codecerr.TruncatedInput, "ans: short order-0 header")
	}
	outSz := int(binary.LittleEndian.Uint32(in[0:4]))
	if outSz == 0 {
		return []byte{}, nil
	}
	f, n, err := decodeFreq(in[4:])
	if err != nil {
		return nil, err
	}
	cp := 4 + n

	var total int64
	for _, v := range f {
		total += v
	}
	if total != 0 && total != ProbScale {
		return nil, codecerr.New(codecerr.MalformedTable, "ans: order-0 table does not sum to ProbScale")
	}

	out := make([]byte, outSz)
	dt := buildDecTable(f[:])

	pos := cp
	if pos+16 > len(in) {
		return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-0 payload")
	}
	var r [4]uint32
	for k := 0; k < 4; k++ {
		r[k] = binary.LittleEndian.Uint32(in[pos:])
		pos += 4
	}

	const mask = ProbScale - 1
	outEnd := outSz &^ 3
	for i := 0; i < outEnd; i += 4 {
		var m [4]uint32
		for k := 0; k < 4; k++ {
			m[k] = r[k] & mask
			out[i+k] = dt.ssym[m[k]]
			r[k] = uint32(dt.sfreq[m[k]])*(r[k]>>ProbBits) + uint32(dt.sbase[m[k]])
		}
		for k := 0; k < 4; k++ {
			decRenorm(&r[k], in, &pos)
		}
	}

	switch outSz & 3 {
	case 3:
		out[outEnd+2] = dt.ssym[r[2]&mask]
		fallthrough
	case 2:
		out[outEnd+1] = dt.ssym[r[1]&mask]
		fallthrough
	case 1:
		out[outEnd] = dt.ssym[r[0]&mask]
	}

	return out, nil
}

// --- order-1 ----------------------------------------------------------------

// order1CompressThreshold is the serialised-table size above which the
// table itself is recursively order-0 compressed, per the reference
// implementation's "cp-op > 1000 && < 100000" rule.
const order1CompressThreshold = 1000

// CompressOrder1 compresses in using a per-previous-symbol (order-1)
// frequency model. Requires at least 4 bytes of input (the reference
// splits input into 4 conceptual segments for histogramming).
func CompressOrder1(in []byte) ([]byte, error) {
	n := len(in)
	if n < 4 {
		return nil, codecerr.New(codecerr.BadInput, "ans: order-1 requires at least 4 bytes")
	}

	var f [256][256]int64
	var t [256]int64
	idiv4 := n / 4
	in0, in1, in2, in3 := 0, idiv4, 2*idiv4, 3*idiv4
	in0End := in1
	last0, last1, last2, last3 := byte(0), in[in1-1], in[in2-1], in[in3-1]
	for in0 < in0End {
		c0 := in[in0]
		f[last0][c0]++
		t[last0]++
		last0 = c0
		in0++

		c1 := in[in1]
		f[last1][c1]++
		t[last1]++
		last1 = c1
		in1++

		c2 := in[in2]
		f[last2][c2]++
		t[last2]++
		last2 = c2
		in2++

		c3 := in[in3]
		f[last3][c3]++
		t[last3]++
		last3 = c3
		in3++
	}
	for in3 < n {
		c3 := in[in3]
		f[last3][c3]++
		t[last3]++
		last3 = c3
		in3++
	}

	var present [256]bool
	for _, b := range in {
		present[b] = true
	}

	header := encodeFreq0(present[:])

	// The backwards 4-way encode stitches segment 3 back onto segment 0's
	// context at each of the three internal seams (see encodeOrder1Backwards),
	// so context 0 needs counts for the three segment-boundary bytes too.
	f[0][in[1*idiv4]]++
	f[0][in[2*idiv4]]++
	f[0][in[3*idiv4]]++
	t[0] += 3

	var syms [256][256]encSymbol
	rleI := 0
	for i := 0; i < 256; i++ {
		if t[i] == 0 {
			continue
		}
		row := f[i]
		if t[i] > ProbScale {
			normaliseFreq(row[:], t[i], ProbScale)
		}
		if rleI > 0 {
			rleI--
		} else {
			header = append(header, byte(i))
			if i > 0 && t[i-1] != 0 {
				k := i + 1
				for k < 256 && t[k] != 0 {
					k++
				}
				rleI = k - (i + 1)
				header = append(header, byte(rleI))
			}
		}
		header = append(header, encodeFreqD(present, row[:])...)
		if t[i] < ProbScale {
			normaliseFreq(row[:], t[i], ProbScale)
		}

		x := uint32(0)
		for j := 0; j < 256; j++ {
			syms[i][j] = newEncSymbol(x, uint32(row[j]))
			x += uint32(row[j])
		}
	}
	header = append(header, 0)

	tableFlag := byte(0)
	tableBody := header
	if len(header) > order1CompressThreshold && len(header) < 100000 {
		if compressedTable, err := CompressOrder0(header); err == nil && len(compressedTable) < 65536 && len(compressedTable)+3 < len(header) {
			tableFlag = 1
			tableBody = compressedTable
		}
	}

	bound := Bound(n, Order1)
	out := make([]byte, bound)
	cp := 4
	out[cp] = tableFlag
	cp++
	if tableFlag == 1 {
		out[cp] = byte(len(tableBody))
		out[cp+1] = byte(len(tableBody) >> 8)
		cp += 2
	}
	if cp+len(tableBody) > len(out) {
		return nil, codecerr.New(codecerr.ShortBuffer, "ans: bound too small for order-1 table")
	}
	copy(out[cp:], tableBody)
	cp += len(tableBody)

	body := encodeOrder1Backwards(in, &syms)
	if cp+len(body) > len(out) {
		return nil, codecerr.New(codecerr.ShortBuffer, "ans: bound too small for order-1 payload")
	}
	binary.LittleEndian.PutUint32(out[0:], uint32(n))
	copy(out[cp:], body)
	return out[:cp+len(body)], nil
}

func encodeOrder1Backwards(in []byte, syms *[256][256]encSymbol) []byte {
	n := len(in)
	buf := make([]byte, 2*n+64)
	pos := len(buf)

	var r0, r1, r2, r3 uint32 = RansL, RansL, RansL, RansL

	isz4 := n >> 2
	i0, i1, i2 := 1*isz4-2, 2*isz4-2, 3*isz4-2
	i3 := 4*isz4 - 2
	l0 := in[i0+1]
	l1 := in[i1+1]
	l2 := in[i2+1]
	l3 := in[n-1]

	for i3 = n - 2; i3 > 4*isz4-2; i3-- {
		c3 := in[i3]
		syms[c3][l3].put(&r3, buf, &pos)
		l3 = c3
	}

	for ; i0 >= 0; i0, i1, i2, i3 = i0-1, i1-1, i2-1, i3-1 {
		c3 := in[i3]
		c2 := in[i2]
		c1 := in[i1]
		c0 := in[i0]
		syms[c3][l3].put(&r3, buf, &pos)
		syms[c2][l2].put(&r2, buf, &pos)
		syms[c1][l1].put(&r1, buf, &pos)
		syms[c0][l0].put(&r0, buf, &pos)
		l0, l1, l2, l3 = c0, c1, c2, c3
	}

	syms[0][l3].put(&r3, buf, &pos)
	syms[0][l2].put(&r2, buf, &pos)
	syms[0][l1].put(&r1, buf, &pos)
	syms[0][l0].put(&r0, buf, &pos)

	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r3)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r2)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r1)
	pos -= 4
	binary.LittleEndian.PutUint32(buf[pos:], r0)

	return buf[pos:]
}

// DecompressOrder1 reverses CompressOrder1.
func DecompressOrder1(in []byte) ([]byte, error) {
	if len(in) < 5 {
		return nil, codecerr.New(codecerr.TruncatedInput, "ans: short order-1 header")
	}
	outSz := int(binary.LittleEndian.Uint32(in[0:4]))
	cp := 4
	flag := in[cp]
	cp++

	var tableBuf []byte
	if flag == 1 {
		if cp+2 > len(in) {
			return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 table length")
		}
		cFreqSz := int(in[cp]) | int(in[cp+1])<<8
		cp += 2
		if cp+cFreqSz > len(in) {
			return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated compressed order-1 table")
		}
		decodedTable, err := DecompressOrder0(in[cp : cp+cFreqSz])
		if err != nil {
			return nil, err
		}
		tableBuf = decodedTable
		cp += cFreqSz
	} else {
		tableBuf = in[cp:]
	}

	present, n0, err := decodeFreq0(tableBuf)
	if err != nil {
		return nil, err
	}
	rowPos := n0

	dts := make([]*decTable, 256)
	if rowPos >= len(tableBuf) {
		return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 context list")
	}
	i := int(tableBuf[rowPos])
	rowPos++
	rleI := 0
	for {
		f, total, n, derr := decodeFreqD(tableBuf[rowPos:], present)
		if derr != nil {
			return nil, derr
		}
		rowPos += n
		if total > ProbScale {
			return nil, codecerr.New(codecerr.MalformedTable, "ans: order-1 row exceeds ProbScale")
		}
		if total < ProbScale {
			normaliseFreq(f[:], total, ProbScale)
		}
		dts[i] = buildDecTable(f[:])

		if rowPos >= len(tableBuf) {
			return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 context list")
		}
		switch {
		case rleI == 0 && i+1 == int(tableBuf[rowPos]):
			rowPos++
			if rowPos >= len(tableBuf) {
				return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 context list")
			}
			i = i + 1
			rleI = int(tableBuf[rowPos])
			rowPos++
		case rleI > 0:
			rleI--
			i++
		default:
			i = int(tableBuf[rowPos])
			rowPos++
		}
		if i == 0 {
			break
		}
	}

	if flag == 0 {
		cp += rowPos
	}

	out := make([]byte, outSz)
	if outSz == 0 {
		return out, nil
	}
	if cp+16 > len(in) {
		return nil, codecerr.New(codecerr.TruncatedInput, "ans: truncated order-1 payload")
	}
	pos := cp
	var r [4]uint32
	for k := 0; k < 4; k++ {
		r[k] = binary.LittleEndian.Uint32(in[pos:])
		pos += 4
	}

	const mask = ProbScale - 1
	isz4 := outSz >> 2
	var l [4]byte
	idx := [4]int{0, isz4, 2 * isz4, 3 * isz4}
	for idx[0] < isz4 {
		var m, c [4]uint32
		for k := 0; k < 4; k++ {
			dt := dts[l[k]]
			if dt == nil {
				return nil, codecerr.New(codecerr.MalformedTable, "ans: missing order-1 context row")
			}
			m[k] = r[k] & mask
			c[k] = uint32(dt.ssym[m[k]])
			r[k] = uint32(dt.sfreq[m[k]])*(r[k]>>ProbBits) + uint32(dt.sbase[m[k]])
		}
		for k := 0; k < 4; k++ {
			out[idx[k]] = byte(c[k])
		}
		for k := 0; k < 4; k++ {
			decRenorm(&r[k], in, &pos)
			l[k] = byte(c[k])
			idx[k]++
		}
	}

	for ; idx[3] < outSz; idx[3]++ {
		dt := dts[l[3]]
		if dt == nil {
			return nil, codecerr.New(codecerr.MalformedTable, "ans: missing order-1 context row")
		}
		m3 := r[3] & mask
		c3 := dt.ssym[m3]
		out[idx[3]] = c3
		r[3] = uint32(dt.sfreq[m3])*(r[3]>>ProbBits) + uint32(dt.sbase[m3])
		decRenorm(&r[3], in, &pos)
		l[3] = c3
	}

	return out, nil
}

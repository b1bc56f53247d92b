package tokenize

import (
	"github.com/jkbonfield/gnamec/internal/codecerr"
)

// context holds the per-block state shared by encode and decode: the
// cached per-line token records needed to delta-encode (or
// reconstruct) each subsequent line. The trie is encoder-only and left
// nil on the decode side.
type context struct {
	lc   []lineCache
	trie *trieNode
}

// Encode tokenises names (each entry one 7-bit ASCII read name, with
// no trailing newline) into a fresh Descriptors set. Names must be
// non-empty; a byte with the high bit set is a BadInput error and
// aborts the whole block, per the error taxonomy's "no partial output"
// rule.
func Encode(names [][]byte) (*Descriptors, error) {
	d := NewDescriptors()
	ctx := &context{
		lc:   make([]lineCache, len(names)),
		trie: newTrieRoot(),
	}

	for cnum, name := range names {
		if len(name) == 0 {
			return nil, codecerr.New(codecerr.BadInput, "tokenize: empty name")
		}
		for _, b := range name {
			if b&0x80 != 0 {
				return nil, codecerr.New(codecerr.BadInput, "tokenize: non-7-bit byte in name")
			}
		}
		if err := encodeLine(ctx, d, cnum, name); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Decode reconstructs nLines names from d, which must hold the same
// descriptor streams Encode produced (after a meta-codec round trip).
func Decode(d *Descriptors, nLines int) ([][]byte, error) {
	ctx := &context{lc: make([]lineCache, nLines)}
	names := make([][]byte, nLines)

	for cnum := 0; cnum < nLines; cnum++ {
		name, err := decodeLine(ctx, d, cnum)
		if err != nil {
			return nil, err
		}
		names[cnum] = name
	}
	return names, nil
}

func clampDistance(dist, cnum int) int {
	if dist > cnum {
		return cnum
	}
	if dist < 1 {
		return 1
	}
	return dist
}

func encodeLine(ctx *context, d *Descriptors, cnum int, name []byte) error {
	fp := detectFixedPrefix(name)
	ref, exact := searchTrie(ctx.trie, name, cnum, fp)
	if ref < 0 {
		if cnum > 0 {
			ref = cnum - 1
		} else {
			ref = 0
		}
	}
	pnum := ref

	if exact && len(name) == len(ctx.lc[pnum].name) {
		dist := clampDistance(cnum-pnum, cnum)
		d.writeType(0, KindDUP)
		d.writeUint32(0, KindDUP, uint32(dist))

		ctx.lc[cnum].name = name
		ctx.lc[cnum].ntok = ctx.lc[pnum].ntok
		ctx.lc[cnum].tokType = ctx.lc[pnum].tokType
		ctx.lc[cnum].tokInt = ctx.lc[pnum].tokInt
		ctx.lc[cnum].tokStr = ctx.lc[pnum].tokStr
		return nil
	}

	dist := clampDistance(cnum-pnum, cnum)
	d.writeType(0, KindDIFF)
	d.writeUint32(0, KindDIFF, uint32(dist))

	hasRef := pnum < cnum
	prev := &ctx.lc[pnum]
	cur := &ctx.lc[cnum]

	ntok := 1
	i := 0

	if fp.fixed {
		matched := hasRef && ntok < prev.ntok && prev.tokType[ntok] == KindALPHA &&
			int(prev.tokInt[ntok]) == fp.fixedLen &&
			bytesEqual(name[:fp.fixedLen], prev.name[prev.tokStr[ntok]:prev.tokStr[ntok]+fp.fixedLen])
		if matched {
			d.writeType(ntok, KindMATCH)
		} else {
			encodeAlpha(d, ntok, name[:fp.fixedLen])
		}
		cur.tokType[ntok] = KindALPHA
		cur.tokInt[ntok] = uint32(fp.fixedLen)
		cur.tokStr[ntok] = 0
		ntok++
		i = fp.fixedLen
	}

	for i < len(name) {
		c := name[i]
		switch {
		case isAlpha(c):
			s := i + 1
			for s < len(name) && isAlpha(name[s]) {
				s++
			}
			if s-i == 1 {
				encodeChar(d, ntok, cur, prev, hasRef, c)
				i = s
				ntok++
				continue
			}
			encodeAlphaRun(d, ntok, name, i, s, cur, prev, hasRef)
			i = s
			ntok++

		case c == '0':
			i = encodeDigits0(d, ntok, name, i, cur, prev, hasRef)
			ntok++

		case isDigit(c):
			next := i + 1
			for next < len(name) && isDigit(name[next]) && next-i < maxDigitRun {
				next++
			}
			width := next - i
			if hasRef && ntok < prev.ntok && prev.tokType[ntok] == KindDIGITS0 && prev.tokStr[ntok] == width {
				i = encodeDigits0(d, ntok, name, i, cur, prev, hasRef)
				ntok++
				continue
			}
			i = encodeDigits(d, ntok, name, i, cur, prev, hasRef)
			ntok++

		default:
			encodeChar(d, ntok, cur, prev, hasRef, c)
			i++
			ntok++
		}
	}

	d.writeType(ntok, KindEND)

	cur.name = name
	cur.ntok = ntok
	return nil
}

func encodeAlpha(d *Descriptors, p int, str []byte) {
	d.writeType(p, KindALPHA)
	d.writeBytes(p, KindALPHA, str)
	d.writeByte(p, KindALPHA, 0)
}

func encodeAlphaRun(d *Descriptors, p int, name []byte, i, s int, cur, prev *lineCache, hasRef bool) {
	str := name[i:s]
	if hasRef && p < prev.ntok && prev.tokType[p] == KindALPHA &&
		int(prev.tokInt[p]) == s-i &&
		bytesEqual(str, prev.name[prev.tokStr[p]:prev.tokStr[p]+(s-i)]) {
		d.writeType(p, KindMATCH)
	} else {
		encodeAlpha(d, p, str)
	}
	cur.tokType[p] = KindALPHA
	cur.tokInt[p] = uint32(s - i)
	cur.tokStr[p] = i
}

func encodeChar(d *Descriptors, p int, cur, prev *lineCache, hasRef bool, b byte) {
	if hasRef && p < prev.ntok && prev.tokType[p] == KindCHAR && byte(prev.tokInt[p]) == b {
		d.writeType(p, KindMATCH)
	} else {
		d.writeType(p, KindCHAR)
		d.writeByte(p, KindCHAR, b)
	}
	cur.tokType[p] = KindCHAR
	cur.tokInt[p] = uint32(b)
}

// encodeDigits0 handles a run of digits that starts with '0' (and, via
// the DIGITS reroute above, a same-width run the reference also typed
// DIGITS0). It returns the index just past the consumed run.
func encodeDigits0(d *Descriptors, p int, name []byte, i int, cur, prev *lineCache, hasRef bool) int {
	s := i
	var v uint32
	for s < len(name) && isDigit(name[s]) && s-i < maxDigitRun {
		v = v*10 + uint32(name[s]-'0')
		s++
	}
	width := s - i

	switch {
	case hasRef && p < prev.ntok && prev.tokType[p] == KindDIGITS0 && prev.tokStr[p] == width && prev.tokInt[p] == v:
		d.writeType(p, KindMATCH)
	case hasRef && p < prev.ntok && prev.tokType[p] == KindDIGITS0 && prev.tokStr[p] == width &&
		v >= prev.tokInt[p] && v-prev.tokInt[p] < 256:
		d.writeType(p, KindDDELTA0)
		d.writeByte(p, KindDDELTA0, byte(v-prev.tokInt[p]))
	default:
		d.writeType(p, KindDIGITS0)
		d.writeByte(p, KindDZLEN, byte(width))
		d.writeUint32(p, KindDIGITS0, v)
	}

	cur.tokType[p] = KindDIGITS0
	cur.tokInt[p] = v
	cur.tokStr[p] = width
	return s
}

// encodeDigits handles a run of digits starting 1-9. It returns the
// index just past the consumed run.
func encodeDigits(d *Descriptors, p int, name []byte, i int, cur, prev *lineCache, hasRef bool) int {
	s := i
	var v uint32
	for s < len(name) && isDigit(name[s]) && s-i < maxDigitRun {
		v = v*10 + uint32(name[s]-'0')
		s++
	}

	switch {
	case hasRef && p < prev.ntok && prev.tokType[p] == KindDIGITS && prev.tokInt[p] == v:
		d.writeType(p, KindMATCH)
	case hasRef && p < prev.ntok && prev.tokType[p] == KindDIGITS &&
		v >= prev.tokInt[p] && v-prev.tokInt[p] < 256:
		d.writeType(p, KindDDELTA)
		d.writeByte(p, KindDDELTA, byte(v-prev.tokInt[p]))
	default:
		d.writeType(p, KindDIGITS)
		d.writeUint32(p, KindDIGITS, v)
	}

	cur.tokType[p] = KindDIGITS
	cur.tokInt[p] = v
	return s
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package tokenize

import (
	"strconv"

	"github.com/jkbonfield/gnamec/internal/codecerr"
)

func decodeLine(ctx *context, d *Descriptors, cnum int) ([]byte, error) {
	t0, ok := d.readType(0)
	if !ok {
		return nil, codecerr.New(codecerr.TruncatedInput, "tokenize: stream exhausted before token 0")
	}

	var dist uint32
	var err error
	switch t0 {
	case KindDUP:
		dist, err = d.readUint32(0, KindDUP)
	case KindDIFF:
		dist, err = d.readUint32(0, KindDIFF)
	default:
		return nil, codecerr.New(codecerr.InvalidTag, "tokenize: unrecognised token-0 type")
	}
	if err != nil {
		return nil, err
	}

	pnum := cnum - int(dist)
	if pnum < 0 {
		pnum = 0
	}
	cur := &ctx.lc[cnum]

	if t0 == KindDUP {
		if pnum >= cnum {
			return nil, codecerr.New(codecerr.MalformedTable, "tokenize: DUP references a line not yet decoded")
		}
		prev := &ctx.lc[pnum]
		name := make([]byte, len(prev.name))
		copy(name, prev.name)

		cur.name = name
		cur.ntok = prev.ntok
		cur.tokType = prev.tokType
		cur.tokInt = prev.tokInt
		cur.tokStr = prev.tokStr
		return name, nil
	}

	prev := &ctx.lc[pnum]
	name := make([]byte, 0, 32)

	for p := 1; p < MaxPositions; p++ {
		tok, ok := d.readType(p)
		if !ok {
			return nil, codecerr.New(codecerr.TruncatedInput, "tokenize: stream exhausted before END")
		}

		switch tok {
		case KindEND:
			cur.tokType[p] = KindEND
			cur.name = name
			cur.ntok = p
			return name, nil

		case KindCHAR:
			b, err := d.readByte(p, KindCHAR)
			if err != nil {
				return nil, err
			}
			cur.tokStr[p] = len(name)
			name = append(name, b)
			cur.tokType[p] = KindCHAR
			cur.tokInt[p] = uint32(b)

		case KindALPHA:
			str, err := d.readCString(p)
			if err != nil {
				return nil, err
			}
			cur.tokType[p] = KindALPHA
			cur.tokStr[p] = len(name)
			cur.tokInt[p] = uint32(len(str))
			name = append(name, str...)

		case KindDIGITS0:
			width, err := d.readByte(p, KindDZLEN)
			if err != nil {
				return nil, err
			}
			v, err := d.readUint32(p, KindDIGITS0)
			if err != nil {
				return nil, err
			}
			name = appendFixed(name, v, int(width))
			cur.tokType[p] = KindDIGITS0
			cur.tokInt[p] = v
			cur.tokStr[p] = int(width)

		case KindDDELTA0:
			delta, err := d.readByte(p, KindDDELTA0)
			if err != nil {
				return nil, err
			}
			if p >= prev.ntok || prev.tokType[p] != KindDIGITS0 {
				return nil, codecerr.New(codecerr.MalformedTable, "tokenize: DDELTA0 references a position the reference line did not store as DIGITS0")
			}
			v := prev.tokInt[p] + uint32(delta)
			name = appendFixed(name, v, prev.tokStr[p])
			cur.tokType[p] = KindDIGITS0
			cur.tokInt[p] = v
			cur.tokStr[p] = prev.tokStr[p]

		case KindDIGITS:
			v, err := d.readUint32(p, KindDIGITS)
			if err != nil {
				return nil, err
			}
			name = strconv.AppendUint(name, uint64(v), 10)
			cur.tokType[p] = KindDIGITS
			cur.tokInt[p] = v

		case KindDDELTA:
			delta, err := d.readByte(p, KindDDELTA)
			if err != nil {
				return nil, err
			}
			if p >= prev.ntok || prev.tokType[p] != KindDIGITS {
				return nil, codecerr.New(codecerr.MalformedTable, "tokenize: DDELTA references a position the reference line did not store as DIGITS")
			}
			v := prev.tokInt[p] + uint32(delta)
			name = strconv.AppendUint(name, uint64(v), 10)
			cur.tokType[p] = KindDIGITS
			cur.tokInt[p] = v

		case KindMATCH:
			if p >= prev.ntok {
				return nil, codecerr.New(codecerr.MalformedTable, "tokenize: MATCH references a position the reference line did not reach")
			}
			switch prev.tokType[p] {
			case KindCHAR:
				b := byte(prev.tokInt[p])
				cur.tokStr[p] = len(name)
				name = append(name, b)
				cur.tokType[p] = KindCHAR
				cur.tokInt[p] = uint32(b)

			case KindALPHA:
				str := prev.name[prev.tokStr[p] : prev.tokStr[p]+int(prev.tokInt[p])]
				cur.tokType[p] = KindALPHA
				cur.tokStr[p] = len(name)
				cur.tokInt[p] = prev.tokInt[p]
				name = append(name, str...)

			case KindDIGITS:
				v := prev.tokInt[p]
				name = strconv.AppendUint(name, uint64(v), 10)
				cur.tokType[p] = KindDIGITS
				cur.tokInt[p] = v

			case KindDIGITS0:
				v := prev.tokInt[p]
				name = appendFixed(name, v, prev.tokStr[p])
				cur.tokType[p] = KindDIGITS0
				cur.tokInt[p] = v
				cur.tokStr[p] = prev.tokStr[p]

			default:
				return nil, codecerr.New(codecerr.MalformedTable, "tokenize: MATCH references a kind the reference did not store")
			}

		default:
			return nil, codecerr.New(codecerr.InvalidTag, "tokenize: unrecognised token type")
		}
	}

	return nil, codecerr.New(codecerr.TruncatedInput, "tokenize: line exceeds MaxPositions tokens without END")
}

// appendFixed appends v zero-padded to width digits, matching the
// original textual width a DIGITS0 token recorded.
func appendFixed(dst []byte, v uint32, width int) []byte {
	if width == 0 {
		return dst
	}
	start := len(dst)
	dst = strconv.AppendUint(dst, uint64(v), 10)
	written := len(dst) - start
	if written >= width {
		return dst
	}
	pad := width - written
	dst = append(dst, make([]byte, pad)...)
	copy(dst[start+pad:], dst[start:start+written])
	for i := 0; i < pad; i++ {
		dst[start+i] = '0'
	}
	return dst
}

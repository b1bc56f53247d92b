// Package pack implements the bit-packing codec: small alphabets (at
// most 16 distinct byte values) are stored as a dictionary plus a
// stream of fixed-width codes packed 2, 4 or 8 to the byte.
package pack

import "github.com/jkbonfield/gnamec/internal/codecerr"

// Mode selects how many codes are packed per output byte. Mode1 is the
// raw fallback (alphabet too large, or packing isn't worth it); Mode0
// means the whole input is a single repeated byte.
const (
	Mode0 = 0
	Mode1 = 1
	Mode2 = 2
	Mode4 = 4
	Mode8 = 8
)

// Encode returns the dictionary plus packed (or raw) payload for in.
// The caller tracks len(in) separately; Decode needs it back.
func Encode(in []byte) []byte {
	var present [256]bool
	for _, b := range in {
		present[b] = true
	}

	var code [256]int
	var dict []byte
	n := 0
	for i := 0; i < 256; i++ {
		if present[i] {
			code[i] = n
			dict = append(dict, byte(i))
			n++
		}
	}

	dictBytes := len(dict) + 1
	var mode byte
	switch {
	case n > 16 || len(in) < dictBytes+len(in)/2:
		mode = Mode1
	case n > 4:
		mode = Mode2
	case n > 2:
		mode = Mode4
	case n > 1:
		mode = Mode8
	default:
		mode = Mode0
	}

	out := make([]byte, 0, dictBytes+1+len(in))
	out = append(out, mode)
	out = append(out, dict...)
	out = append(out, 0)

	switch mode {
	case Mode1:
		out = append(out, in...)
	case Mode2, Mode4, Mode8:
		out = append(out, packGroups(in, code[:], int(mode))...)
	case Mode0:
		// Single symbol: the dictionary alone reconstructs the input.
	}

	return out
}

// packGroups packs valuesPerByte codes per byte, most-significant group
// first; a short final group is padded with code 0.
func packGroups(in []byte, code []int, valuesPerByte int) []byte {
	bitsPerCode := 8 / valuesPerByte
	out := make([]byte, 0, (len(in)+valuesPerByte-1)/valuesPerByte)
	for i := 0; i < len(in); i += valuesPerByte {
		var b int
		shift := 8 - bitsPerCode
		for k := 0; k < valuesPerByte; k++ {
			c := 0
			if i+k < len(in) {
				c = code[in[i+k]]
			}
			b |= c << uint(shift)
			shift -= bitsPerCode
		}
		out = append(out, byte(b))
	}
	return out
}

// Decode reverses Encode, producing exactly ulen bytes. consumed reports
// how many bytes of in were read, so callers concatenating several
// payloads back to back know where the next one starts.
func Decode(in []byte, ulen int) (out []byte, consumed int, err error) {
	if ulen == 0 {
		// Encode writes an empty input as a mode byte followed by the
		// empty dictionary's 0x00 terminator.
		if len(in) < 2 {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: empty payload")
		}
		return []byte{}, 2, nil
	}
	if len(in) < 1 {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: empty payload")
	}
	mode := in[0]
	pos := 1

	dict, n, err := decodeDict(in[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n

	switch mode {
	case Mode1:
		if pos+ulen > len(in) {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: truncated raw payload")
		}
		out = make([]byte, ulen)
		copy(out, in[pos:pos+ulen])
		return out, pos + ulen, nil

	case Mode0:
		if len(dict) != 1 {
			return nil, 0, codecerr.New(codecerr.MalformedTable, "pack: mode 0 needs a single-symbol dictionary")
		}
		out = make([]byte, ulen)
		for i := range out {
			out[i] = dict[0]
		}
		return out, pos, nil

	case Mode2, Mode4, Mode8:
		out, n, err = unpackGroups(in[pos:], dict, int(mode), ulen)
		if err != nil {
			return nil, 0, err
		}
		return out, pos + n, nil

	default:
		return nil, 0, codecerr.New(codecerr.InvalidTag, "pack: unknown mode")
	}
}

// decodeDict reads the ascending, 0x00-terminated symbol dictionary.
// The dictionary always has at least one entry, so a literal 0x00 can
// only be the terminator once it appears past the first byte.
func decodeDict(buf []byte) (dict []byte, n int, err error) {
	if len(buf) == 0 {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: missing dictionary")
	}
	dict = append(dict, buf[0])
	i := 1
	for i < len(buf) && buf[i] != 0 {
		dict = append(dict, buf[i])
		i++
	}
	if i >= len(buf) {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: unterminated dictionary")
	}
	return dict, i + 1, nil
}

// unpackGroups reverses packGroups, truncating the unpacked stream to
// ulen codes and mapping each back through dict. n reports how many
// packed bytes were consumed to produce those ulen codes.
func unpackGroups(payload, dict []byte, valuesPerByte, ulen int) (out []byte, n int, err error) {
	bitsPerCode := 8 / valuesPerByte
	mask := (1 << uint(bitsPerCode)) - 1

	out = make([]byte, 0, ulen)
	for n = 0; n < len(payload) && len(out) < ulen; n++ {
		b := payload[n]
		for shift := 8 - bitsPerCode; shift >= 0 && len(out) < ulen; shift -= bitsPerCode {
			code := int(b>>uint(shift)) & mask
			if code >= len(dict) {
				return nil, 0, codecerr.New(codecerr.MalformedTable, "pack: code outside dictionary range")
			}
			out = append(out, dict[code])
		}
	}
	if len(out) != ulen {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "pack: payload too short for declared length")
	}
	return out, n, nil
}

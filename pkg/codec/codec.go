// Package codec is the meta-codec: it tries every applicable base codec
// on a byte stream, keeps the smallest result, and prefixes it with a
// one-byte tag so Uncompress can dispatch straight back to the right
// decoder without side information.
package codec

import (
	"encoding/binary"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/jkbonfield/gnamec/internal/codecerr"
	"github.com/jkbonfield/gnamec/internal/varint"
	"github.com/jkbonfield/gnamec/pkg/ans"
	"github.com/jkbonfield/gnamec/pkg/pack"
	"github.com/jkbonfield/gnamec/pkg/rle"
)

// Tag identifies which codec produced a blob. It is always the first
// byte of a meta-codec blob.
const (
	CAT   byte = 0x00
	RLE   byte = 0x01
	RANS0 byte = 0x02
	RANS1 byte = 0x03
	X4    byte = 0x04
	PACK  byte = 0x05
	RLE0  byte = 0x06
	RLE1  byte = 0x07
	PACK0 byte = 0x08
	PACK1 byte = 0x09

	// ZSTD is not part of the donor's tag range; it is this codec's own
	// fallback tier for descriptors the rest of the catalogue handles
	// poorly (long, irregular literal runs with no small alphabet).
	ZSTD byte = 0x0A
)

// Options controls which candidates Compress is allowed to try.
type Options struct {
	// AllowX4 enables the 4-way byte-deinterleave candidate. The X4
	// encoder always calls Compress on each quarter with AllowX4
	// cleared, so X4 never nests.
	AllowX4 bool

	// AllowZstd enables the zstd fallback candidate. It is off by
	// default: zstd rarely beats rANS on the short, already
	// low-entropy descriptor streams this catalogue targets, and
	// trying it on every descriptor would cost more than it saves.
	AllowZstd bool
}

const x4MinLen = 32
const rans1MinLen = 4
const composeMinLen = 16

// Compress returns the smallest blob any applicable candidate codec
// produced for in, each prefixed with its tag.
func Compress(in []byte, opts Options) ([]byte, error) {
	type candidate struct {
		blob []byte
		err  error
	}

	n := len(in)
	best := encodeCAT(in)

	consider := func(c candidate) {
		if c.err != nil {
			return
		}
		if len(c.blob) < len(best) {
			best = c.blob
		}
	}

	consider(candidate{encodeRLE(in), nil})
	if blob, err := encodeRANS0(in); err == nil {
		consider(candidate{blob, nil})
	}

	if n >= rans1MinLen {
		if blob, err := encodeRANS1(in); err == nil {
			consider(candidate{blob, nil})
		}
		consider(candidate{encodePACKTagged(in), nil})
	}

	if n >= composeMinLen {
		if blob, err := encodeRLE0(in); err == nil {
			consider(candidate{blob, nil})
		}
		if blob, err := encodeRLE1(in); err == nil {
			consider(candidate{blob, nil})
		}
		if blob, err := encodePACK0(in); err == nil {
			consider(candidate{blob, nil})
		}
		if blob, err := encodePACK1(in); err == nil {
			consider(candidate{blob, nil})
		}
	}

	if opts.AllowX4 && n%4 == 0 && n >= x4MinLen {
		blob, err := encodeX4(in, opts)
		consider(candidate{blob, err})
	}

	if opts.AllowZstd {
		consider(candidate{encodeZstd(in), nil})
	}

	return best, nil
}

// --- CAT ---------------------------------------------------------------

func encodeCAT(in []byte) []byte {
	out := make([]byte, 0, 1+5+len(in))
	out = append(out, CAT)
	out = varint.Put(out, uint64(len(in)))
	out = append(out, in...)
	return out
}

// --- RLE -----------------------------------------------------------------

func encodeRLE(in []byte) []byte {
	payload := rle.Encode(in)
	out := make([]byte, 0, 1+5+len(payload))
	out = append(out, RLE)
	out = varint.Put(out, uint64(len(in)))
	out = append(out, payload...)
	return out
}

// --- PACK ------------------------------------------------------------------

func encodePACKTagged(in []byte) []byte {
	payload := pack.Encode(in)
	out := make([]byte, 0, 1+5+len(payload))
	out = append(out, PACK)
	out = varint.Put(out, uint64(len(in)))
	out = append(out, payload...)
	return out
}

// --- rANS ------------------------------------------------------------------

// wrapRans prefixes a rANS blob (as produced by pkg/ans, which already
// self-describes its own uncompressed length) with the uint32_le
// compressed-length and uint32_le uncompressed-length fields the wire
// format calls for, ahead of the tag byte that the caller adds.
func wrapRans(payloadLen int, ransBlob []byte) []byte {
	out := make([]byte, 8, 8+len(ransBlob))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(ransBlob)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(payloadLen))
	out = append(out, ransBlob...)
	return out
}

// unwrapRans reads the uint32_le compressed-length and uint32_le
// uncompressed-length header written by wrapRans and returns the rANS
// blob slice plus the number of bytes consumed (header + blob).
func unwrapRans(in []byte) (ransBlob []byte, consumed int, err error) {
	if len(in) < 8 {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated rans header")
	}
	compLen := int(binary.LittleEndian.Uint32(in[0:4]))
	if 8+compLen > len(in) {
		return nil, 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated rans payload")
	}
	return in[8 : 8+compLen], 8 + compLen, nil
}

func encodeRANS0(in []byte) ([]byte, error) {
	ransBlob, err := ans.CompressOrder0(in)
	if err != nil {
		return nil, err
	}
	out := append([]byte{RANS0}, wrapRans(len(in), ransBlob)...)
	return out, nil
}

func encodeRANS1(in []byte) ([]byte, error) {
	ransBlob, err := ans.CompressOrder1(in)
	if err != nil {
		return nil, err
	}
	out := append([]byte{RANS1}, wrapRans(len(in), ransBlob)...)
	return out, nil
}

// --- composed forms: RLE-then-rANS, PACK-then-rANS -------------------------

// encodeCompose rANS-codes pre (the RLE- or PACK-encoded form of in) and
// wraps it as tag + varint(original length) + rans header + rans blob.
// The RLE0/RLE1/PACK0/PACK1 cases in uncompress reverse this inline.
func encodeCompose(tag byte, in []byte, rans0 bool, pre []byte) ([]byte, error) {
	var ransBlob []byte
	var err error
	if rans0 {
		ransBlob, err = ans.CompressOrder0(pre)
	} else {
		ransBlob, err = ans.CompressOrder1(pre)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+5+8+len(ransBlob))
	out = append(out, tag)
	out = varint.Put(out, uint64(len(in)))
	out = append(out, wrapRans(len(pre), ransBlob)...)
	return out, nil
}

func encodeRLE0(in []byte) ([]byte, error) { return encodeCompose(RLE0, in, true, rle.Encode(in)) }
func encodeRLE1(in []byte) ([]byte, error) { return encodeCompose(RLE1, in, false, rle.Encode(in)) }
func encodePACK0(in []byte) ([]byte, error) {
	return encodeCompose(PACK0, in, true, pack.Encode(in))
}
func encodePACK1(in []byte) ([]byte, error) {
	return encodeCompose(PACK1, in, false, pack.Encode(in))
}

// --- X4 ----------------------------------------------------------------

// encodeX4 deinterleaves in into four quarters (byte i goes to quarter
// i%4, position i/4) and recursively meta-codes each quarter with X4
// disabled, so the format never nests.
func encodeX4(in []byte, opts Options) ([]byte, error) {
	n := len(in)
	q := n / 4
	quarters := make([][]byte, 4)
	for k := range quarters {
		quarters[k] = make([]byte, q)
	}
	for i, b := range in {
		quarters[i%4][i/4] = b
	}

	sub := opts
	sub.AllowX4 = false

	out := make([]byte, 0, 1+5+n/2)
	out = append(out, X4)
	out = varint.Put(out, uint64(n))
	for k := 0; k < 4; k++ {
		blob, err := Compress(quarters[k], sub)
		if err != nil {
			return nil, err
		}
		out = append(out, blob...)
	}
	return out, nil
}

// --- zstd fallback -----------------------------------------------------

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func getZstdEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	return zstdEnc
}

func getZstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

// ZSTD blobs carry their own compressed-length varint (unlike CAT/RLE/
// PACK, a zstd frame has no externally obvious end) so framing works
// the same whether the blob sits at top level or inside an X4 quarter.
func encodeZstd(in []byte) []byte {
	payload := getZstdEncoder().EncodeAll(in, nil)
	out := make([]byte, 0, 1+10+len(payload))
	out = append(out, ZSTD)
	out = varint.Put(out, uint64(len(in)))
	out = varint.Put(out, uint64(len(payload)))
	out = append(out, payload...)
	return out
}

func decodeZstd(payload []byte, ulen int) ([]byte, error) {
	out, err := getZstdDecoder().DecodeAll(payload, make([]byte, 0, ulen))
	if err != nil {
		return nil, codecerr.Wrap(codecerr.BadInput, "codec: zstd decode failed", err)
	}
	if len(out) != ulen {
		return nil, codecerr.New(codecerr.TruncatedInput, "codec: zstd payload length mismatch")
	}
	return out, nil
}

// --- Uncompress --------------------------------------------------------

// Uncompress reverses Compress. consumed reports how many bytes of in
// the blob occupied, so callers of X4 (and any other caller stitching
// several blobs together) know where the next one starts.
func Uncompress(in []byte) (out []byte, consumed int, err error) {
	if len(in) < 1 {
		return nil, 0, codecerr.New(codecerr.ShortBuffer, "codec: empty blob")
	}
	return uncompress(in, true)
}

// uncompress is Uncompress's implementation; topLevel is false when
// decoding an X4 quarter, where a nested X4 tag must be rejected.
func uncompress(in []byte, topLevel bool) (out []byte, consumed int, err error) {
	tag := in[0]
	body := in[1:]

	switch tag {
	case CAT:
		ulen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		if n+int(ulen) > len(body) {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated CAT payload")
		}
		out = make([]byte, ulen)
		copy(out, body[n:n+int(ulen)])
		return out, 1 + n + int(ulen), nil

	case RLE:
		ulen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		out, used, err := rle.Decode(body[n:], int(ulen))
		if err != nil {
			return nil, 0, err
		}
		return out, 1 + n + used, nil

	case PACK:
		ulen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		out, used, err := pack.Decode(body[n:], int(ulen))
		if err != nil {
			return nil, 0, err
		}
		return out, 1 + n + used, nil

	case RANS0:
		ransBlob, used, err := unwrapRans(body)
		if err != nil {
			return nil, 0, err
		}
		out, err = ans.DecompressOrder0(ransBlob)
		if err != nil {
			return nil, 0, err
		}
		return out, 1 + used, nil

	case RANS1:
		ransBlob, used, err := unwrapRans(body)
		if err != nil {
			return nil, 0, err
		}
		out, err = ans.DecompressOrder1(ransBlob)
		if err != nil {
			return nil, 0, err
		}
		return out, 1 + used, nil

	case RLE0, RLE1, PACK0, PACK1:
		origLen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		ransBlob, used, err := unwrapRans(body[n:])
		if err != nil {
			return nil, 0, err
		}
		var pre []byte
		if tag == RLE0 || tag == PACK0 {
			pre, err = ans.DecompressOrder0(ransBlob)
		} else {
			pre, err = ans.DecompressOrder1(ransBlob)
		}
		if err != nil {
			return nil, 0, err
		}
		if tag == RLE0 || tag == RLE1 {
			out, _, err = rle.Decode(pre, int(origLen))
		} else {
			out, _, err = pack.Decode(pre, int(origLen))
		}
		if err != nil {
			return nil, 0, err
		}
		return out, 1 + n + used, nil

	case X4:
		if !topLevel {
			return nil, 0, codecerr.New(codecerr.InvalidTag, "codec: X4 may not nest")
		}
		ulen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		total := int(ulen)
		if total%4 != 0 {
			return nil, 0, codecerr.New(codecerr.BadInput, "codec: X4 length not a multiple of 4")
		}
		q := total / 4

		pos := n
		var quarters [4][]byte
		for k := 0; k < 4; k++ {
			if pos >= len(body) {
				return nil, 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated X4 quarter")
			}
			qdata, used, err := uncompress(body[pos:], false)
			if err != nil {
				return nil, 0, err
			}
			if len(qdata) != q {
				return nil, 0, codecerr.New(codecerr.BadInput, "codec: X4 quarter length mismatch")
			}
			quarters[k] = qdata
			pos += used
		}

		out = make([]byte, total)
		for i := range out {
			out[i] = quarters[i%4][i/4]
		}
		return out, 1 + pos, nil

	case ZSTD:
		ulen, n, err := varint.GetErr(body)
		if err != nil {
			return nil, 0, err
		}
		complen, n2, err := varint.GetErr(body[n:])
		if err != nil {
			return nil, 0, err
		}
		pos := n + n2
		if pos+int(complen) > len(body) {
			return nil, 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated zstd payload")
		}
		decoded, err := decodeZstd(body[pos:pos+int(complen)], int(ulen))
		if err != nil {
			return nil, 0, err
		}
		return decoded, 1 + pos + int(complen), nil

	default:
		return nil, 0, codecerr.New(codecerr.InvalidTag, "codec: unknown tag")
	}
}

// UncompressedSize reports the decompressed length of the blob at the
// head of in without decoding its body.
func UncompressedSize(in []byte) (int, error) {
	if len(in) < 1 {
		return 0, codecerr.New(codecerr.ShortBuffer, "codec: empty blob")
	}
	tag := in[0]
	body := in[1:]

	switch tag {
	case CAT, RLE, PACK, X4, RLE0, RLE1, PACK0, PACK1, ZSTD:
		v, _, err := varint.GetErr(body)
		if err != nil {
			return 0, err
		}
		return int(v), nil

	case RANS0, RANS1:
		if len(body) < 8 {
			return 0, codecerr.New(codecerr.TruncatedInput, "codec: truncated rans header")
		}
		return int(binary.LittleEndian.Uint32(body[4:8])), nil

	default:
		return 0, codecerr.New(codecerr.InvalidTag, "codec: unknown tag")
	}
}

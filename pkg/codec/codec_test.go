package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundtrip(t *testing.T, data []byte, opts Options) []byte {
	t.Helper()
	blob, err := Compress(data, opts)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	out, consumed, err := Uncompress(blob)
	if err != nil {
		t.Fatalf("Uncompress failed: %v", err)
	}
	if consumed != len(blob) {
		t.Errorf("consumed %d bytes, want %d (all of blob)", consumed, len(blob))
	}
	if !bytes.Equal(out, data) {
		t.Errorf("roundtrip mismatch: got %v, want %v", out, data)
	}
	size, err := UncompressedSize(blob)
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if size != len(data) {
		t.Errorf("UncompressedSize = %d, want %d", size, len(data))
	}
	return blob
}

func TestRoundtripVariousShapes(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"short literal", []byte("hi")},
		{"long constant run", bytes.Repeat([]byte{'x'}, 1000)},
		{"two symbols", []byte("ABABABABABAB")},
		{"sixteen bytes three symbols", []byte("AAAAAAAABBBBCCCC")},
		{"all 256 bytes", makeAllBytes()},
		{"random 4096", makeRandomish(4096, 1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			roundtrip(t, tc.data, Options{AllowX4: true})
		})
	}
}

// Scenario 2 from the spec: 16 bytes, 3 distinct symbols, PACK should
// pick mode 4 (2 bits per code).
func TestPackSelectsMode4(t *testing.T) {
	data := []byte("AAAAAAAABBBBCCCC")
	blob := encodePACKTagged(data)
	// blob = tag, varint(ulen), mode byte, dict..., 0, packed...
	modeOffset := 1
	for {
		if blob[modeOffset]&0x80 == 0 {
			modeOffset++
			break
		}
		modeOffset++
	}
	if blob[modeOffset] != 4 {
		t.Errorf("pack mode = %d, want 4", blob[modeOffset])
	}
}

// Scenario 3 from the spec: ABABABABABAB (12 bytes) should select PACK
// over CAT and RLE.
func TestMetaCodecSelectsPackOverCatAndRle(t *testing.T) {
	data := []byte("ABABABABABAB")
	blob, err := Compress(data, Options{})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if blob[0] != PACK {
		t.Errorf("tag = %d, want PACK (%d)", blob[0], PACK)
	}
}

// Scenario 4 from the spec: AAAABBBBCCCCDDDD (16 bytes) deinterleaved by
// X4 gives four constant quarters, each trivially compressible; the
// combined blob should be well under the original 16 bytes.
func TestX4DeinterleavesConstantQuarters(t *testing.T) {
	data := []byte("AAAABBBBCCCCDDDD")
	blob, err := encodeX4(data, Options{})
	if err != nil {
		t.Fatalf("encodeX4 failed: %v", err)
	}
	out, consumed, err := Uncompress(blob)
	if err != nil {
		t.Fatalf("Uncompress failed: %v", err)
	}
	if consumed != len(blob) {
		t.Errorf("consumed %d, want %d", consumed, len(blob))
	}
	if !bytes.Equal(out, data) {
		t.Errorf("roundtrip mismatch: got %v, want %v", out, data)
	}
	if len(blob) >= 20 {
		t.Errorf("X4 blob unexpectedly large: %d bytes", len(blob))
	}
}

// An encoder never nests X4, but a corrupted or adversarial blob could
// claim to; decode must reject it rather than recurse.
func TestX4RejectsNestedX4(t *testing.T) {
	forged := []byte{X4, 0x04, X4, X4, X4, X4} // outer ulen = 4; each "quarter" claims to be X4 too
	if _, _, err := Uncompress(forged); err == nil {
		t.Error("expected rejection of nested X4")
	}
}

func TestRandomUniformCompressesNearShannonLimit(t *testing.T) {
	data := makeRandomish(65536, 7)
	blob, err := Compress(data, Options{})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if blob[0] != RANS0 && blob[0] != CAT {
		t.Errorf("expected RANS0 (or CAT if it somehow won) for uniform random data, got tag %d", blob[0])
	}
	// Shannon limit for uniform 256-symbol data is 8 bits/byte; allow
	// generous slack for the frequency table and small-sample noise.
	if len(blob) > len(data)+512 {
		t.Errorf("compressed size %d suspiciously larger than input %d", len(blob), len(data))
	}
}

func TestUncompressRejectsUnknownTag(t *testing.T) {
	if _, _, err := Uncompress([]byte{0xFE, 0x00}); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestUncompressRejectsEmptyBlob(t *testing.T) {
	if _, _, err := Uncompress(nil); err == nil {
		t.Error("expected error for empty blob")
	}
}

func makeAllBytes() []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func makeRandomish(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, n)
	r.Read(data)
	return data
}

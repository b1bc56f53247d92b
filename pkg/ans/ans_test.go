package ans

import (
	"bytes"
	"testing"
)

func TestOrder0Roundtrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"short", []byte("hello")},
		{"longer", []byte("the quick brown fox jumps over the lazy dog")},
		{"repetitive", bytes.Repeat([]byte{0xAA}, 1000)},
		{"all same", bytes.Repeat([]byte{0}, 100)},
		{"all bytes", makeAllBytes()},
		{"random-ish", makeRandomish(1000)},
		{"random-ish large", makeRandomish(70000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := CompressOrder0(tc.data)
			if err != nil {
				t.Fatalf("CompressOrder0 failed: %v", err)
			}

			decompressed, err := DecompressOrder0(compressed)
			if err != nil {
				t.Fatalf("DecompressOrder0 failed: %v", err)
			}

			if !bytes.Equal(decompressed, tc.data) {
				t.Errorf("roundtrip failed: got %d bytes, want %d bytes",
					len(decompressed), len(tc.data))
			}
		})
	}
}

func TestOrder1Roundtrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"minimal", []byte{1, 2, 3, 4}},
		{"short", []byte("hello world, order one")},
		{"longer", bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)},
		{"repetitive", bytes.Repeat([]byte{0xAA}, 1000)},
		{"all bytes repeated", bytes.Repeat(makeAllBytes(), 8)},
		{"random-ish", makeRandomish(4000)},
		{"random-ish large", makeRandomish(70000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := CompressOrder1(tc.data)
			if err != nil {
				t.Fatalf("CompressOrder1 failed: %v", err)
			}

			decompressed, err := DecompressOrder1(compressed)
			if err != nil {
				t.Fatalf("DecompressOrder1 failed: %v", err)
			}

			if !bytes.Equal(decompressed, tc.data) {
				t.Errorf("roundtrip failed: got %d bytes, want %d bytes",
					len(decompressed), len(tc.data))
			}
		})
	}
}

func TestOrder1RejectsShortInput(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3} {
		_, err := CompressOrder1(makeRandomish(n))
		if err == nil {
			t.Errorf("CompressOrder1 with %d bytes: expected error", n)
		}
	}
}

func TestOrder0Bound(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 10000)
	compressed, err := CompressOrder0(data)
	if err != nil {
		t.Fatalf("CompressOrder0 failed: %v", err)
	}
	if len(compressed) > Bound(len(data), Order0) {
		t.Errorf("compressed size %d exceeds Bound %d", len(compressed), Bound(len(data), Order0))
	}
}

func TestDecompressOrder0Invalid(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"too short", []byte{0, 0, 0}},
		{"truncated header", []byte{10, 0, 0, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecompressOrder0(tc.data)
			if err == nil {
				t.Error("expected error for invalid data")
			}
		})
	}
}

func TestDecompressOrder1Invalid(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"too short", []byte{0, 0, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecompressOrder1(tc.data)
			if err == nil {
				t.Error("expected error for invalid data")
			}
		})
	}
}

func TestNormaliseFreqSumsToScale(t *testing.T) {
	testCases := []struct {
		name   string
		counts []int64
	}{
		{"uniform", repeatInt64(256, 100)},
		{"skewed", skewedCounts()},
		{"single symbol", singleCount()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := make([]int64, 256)
			copy(f, tc.counts)
			var total int64
			for _, c := range f {
				total += c
			}
			normaliseFreq(f, total, ProbScale)

			var sum int64
			for _, c := range f {
				if c < 0 {
					t.Fatalf("negative frequency after normalisation: %d", c)
				}
				sum += c
			}
			if sum != ProbScale {
				t.Errorf("frequencies sum to %d, want %d", sum, ProbScale)
			}
		})
	}
}

func TestEncodeDecodeFreqRoundtrip(t *testing.T) {
	f := make([]int64, 256)
	for _, b := range []byte("hello world") {
		f[b]++
	}
	var total int64
	for _, c := range f {
		total += c
	}
	normaliseFreq(f, total, ProbScale)

	buf := encodeFreq(f)
	got, _, err := decodeFreq(buf)
	if err != nil {
		t.Fatalf("decodeFreq failed: %v", err)
	}
	for i := 0; i < 256; i++ {
		if got[i] != f[i] {
			t.Errorf("symbol %d: got freq %d, want %d", i, got[i], f[i])
		}
	}
}

func BenchmarkCompressOrder0(b *testing.B) {
	data := bytes.Repeat([]byte("the quick brown fox "), 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CompressOrder0(data)
	}
}

func BenchmarkDecompressOrder0(b *testing.B) {
	data := bytes.Repeat([]byte("the quick brown fox "), 1000)
	compressed, _ := CompressOrder0(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecompressOrder0(compressed)
	}
}

func BenchmarkCompressOrder1(b *testing.B) {
	data := bytes.Repeat([]byte("the quick brown fox "), 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CompressOrder1(data)
	}
}

func BenchmarkDecompressOrder1(b *testing.B) {
	data := bytes.Repeat([]byte("the quick brown fox "), 1000)
	compressed, _ := CompressOrder1(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DecompressOrder1(compressed)
	}
}

func makeAllBytes() []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func makeRandomish(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i*179 + 83) % 256)
	}
	return data
}

func repeatInt64(n int, v int64) []int64 {
	f := make([]int64, n)
	for i := range f {
		f[i] = v
	}
	return f
}

func skewedCounts() []int64 {
	f := make([]int64, 256)
	f[0] = 10000
	for i := 1; i < 256; i++ {
		f[i] = 1
	}
	return f
}

func singleCount() []int64 {
	f := make([]int64, 256)
	f[0] = 42
	return f
}

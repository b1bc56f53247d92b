package rle

import (
	"bytes"
	"testing"
)

func TestRoundtrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"short no run", []byte("abc")},
		{"exact min run", []byte("aaaa")},
		{"below min run", []byte("aaa")},
		{"long run", bytes.Repeat([]byte{'x'}, 1000)},
		{"run then literal", []byte("aaaab")},
		{"literal guard byte", []byte{Guard, 'a', 'b'}},
		{"run of guard bytes", bytes.Repeat([]byte{Guard}, 10)},
		{"mixed runs and guards", append(append(bytes.Repeat([]byte{'c'}, 6), Guard, Guard, Guard, Guard, Guard), 'z')},
		{"no repeats at all", makeAllBytes()},
		{"run length needing two varint bytes", bytes.Repeat([]byte{'q'}, 200)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.data)
			decoded, consumed, err := Decode(encoded, len(tc.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, tc.data) {
				t.Errorf("roundtrip mismatch: got %v, want %v", decoded, tc.data)
			}
			if consumed != len(encoded) {
				t.Errorf("consumed %d bytes, want %d (all of encoded)", consumed, len(encoded))
			}
		})
	}
}

func TestEncodeShrinksLongRuns(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 10000)
	encoded := Encode(data)
	if len(encoded) > 20 {
		t.Errorf("expected a long constant run to collapse to a handful of bytes, got %d", len(encoded))
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"dangling guard", []byte{Guard}},
		{"dangling varint continuation", []byte{Guard, 0x80}},
		{"missing symbol after run length", []byte{Guard, 5}},
		{"run overruns declared length", emitRun(bytes.Repeat([]byte{'a'}, 100), 'a', 100)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Decode(tc.data, 1); err == nil {
				t.Error("expected error for malformed input")
			}
		})
	}
}

func makeAllBytes() []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

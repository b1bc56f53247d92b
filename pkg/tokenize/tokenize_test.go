package tokenize

import (
	"bytes"
	"testing"
)

func toNames(lines ...string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}

func assertRoundtrip(t *testing.T, names [][]byte) {
	t.Helper()
	d, err := Encode(names)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(d, len(names))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("got %d names, want %d", len(got), len(names))
	}
	for i := range names {
		if !bytes.Equal(got[i], names[i]) {
			t.Errorf("line %d: got %q, want %q", i, got[i], names[i])
		}
	}
}

func TestRoundtripSimple(t *testing.T) {
	assertRoundtrip(t, toNames(
		"read1",
		"read2",
		"read100",
		"read099",
	))
}

// Scenario 1 from the spec: consecutive SRA-style names where only the
// read number after "SRR608881." and the two coordinate fields change.
func TestRoundtripSRAScenario(t *testing.T) {
	names := toNames(
		"SRR608881.1 FCD0F0WABXX:7:1101:1439:2199/1",
		"SRR608881.2 FCD0F0WABXX:7:1101:1458:2211/1",
	)
	d, err := Encode(names)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Line 2 must be DIFF, not DUP.
	if typ := d.Stream(0, KindNone); len(typ) != 2 || Kind(typ[1]) != KindDIFF {
		t.Fatalf("expected line 2 token 0 to be DIFF, got type stream %v", typ)
	}

	got, err := Decode(d, len(names))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i := range names {
		if !bytes.Equal(got[i], names[i]) {
			t.Errorf("line %d: got %q, want %q", i, got[i], names[i])
		}
	}
}

// Scenario 6 from the spec: many identical lines should all encode as
// DUP against the immediately preceding line.
func TestDuplicateLinesEncodeAsDUP(t *testing.T) {
	lines := make([]string, 1000)
	for i := range lines {
		lines[i] = "SRR608881.1 FCD0F0WABXX:7:1101:1439:2199/1"
	}
	names := toNames(lines...)

	d, err := Encode(names)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	typeStream := d.Stream(0, KindNone)
	if len(typeStream) != len(names) {
		t.Fatalf("type-0 stream length = %d, want %d", len(typeStream), len(names))
	}
	for i := 1; i < len(names); i++ {
		if Kind(typeStream[i]) != KindDUP {
			t.Errorf("line %d: token 0 type = %v, want DUP", i, Kind(typeStream[i]))
		}
	}

	assertRoundtrip(t, names)
}

func TestDigitsWithLeadingZerosPreserveWidth(t *testing.T) {
	assertRoundtrip(t, toNames(
		"sample007",
		"sample008",
		"sample123",
		"sample0007",
	))
}

func TestFixedPrefixFormats(t *testing.T) {
	assertRoundtrip(t, toNames(
		"m54006_170727_190411/4194/0_3267",
		"m54006_170727_190411/4195/0_1800",
		"IX123:12:34567",
		"IX123:12:34568",
		"f33d30d5-6eb8-4115-8f46-154c2620a5da_Basecall_1D_template",
		"f33d30d5-6eb8-4115-8f46-154c2620a5db_Basecall_1D_template",
	))
}

func TestMixedAlphaCharDigitNames(t *testing.T) {
	assertRoundtrip(t, toNames(
		"chr1:12345-12399",
		"chr1:12346-12400",
		"chrX:1-2",
		"scaffold_42#foo",
	))
}

func TestEncodeRejectsEmptyName(t *testing.T) {
	if _, err := Encode(toNames("ok", "")); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestEncodeRejectsHighBit(t *testing.T) {
	names := [][]byte{[]byte("ok"), {0x80, 0x81}}
	if _, err := Encode(names); err == nil {
		t.Error("expected error for non-7-bit byte")
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	names := toNames("read1", "read2")
	d, err := Encode(names)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Truncate the ALPHA stream at position 1 so decode runs dry mid-line.
	d.SetStream(1, KindALPHA, nil)
	if _, err := Decode(d, len(names)); err == nil {
		t.Error("expected error decoding a truncated stream")
	}
}

func TestDecodeRejectsUnknownTokenType(t *testing.T) {
	names := toNames("read1", "read2")
	d, err := Encode(names)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	typ := d.Stream(1, KindNone)
	corrupted := append([]byte{}, typ...)
	corrupted[len(corrupted)-1] = 0x0F // 15: above END, no Kind has this value
	d.SetStream(1, KindNone, corrupted)
	if _, err := Decode(d, len(names)); err == nil {
		t.Error("expected error for unrecognised token type")
	}
}

// Hand-built two-line block: line 0 is a single CHAR token ("x"),
// giving it only one real token position (1; position 2 is its END
// marker). Line 1 claims MATCH at position 2, a position line 0 never
// reached as a real token.
func TestDecodeRejectsMatchAgainstUnrecordedKind(t *testing.T) {
	d := NewDescriptors()

	d.SetStream(0, KindNone, []byte{byte(KindDIFF), byte(KindDIFF)})
	d.SetStream(0, KindDIFF, encodeU32(1, 1))

	d.SetStream(1, KindNone, []byte{byte(KindCHAR), byte(KindCHAR)})
	d.SetStream(1, KindCHAR, []byte{'x', 'y'})

	d.SetStream(2, KindNone, []byte{byte(KindEND), byte(KindMATCH)})

	if _, err := Decode(d, 2); err == nil {
		t.Error("expected error for MATCH against a position the reference line did not reach")
	}
}

func encodeU32(vals ...uint32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return out
}

package blockdriver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func names(lines ...string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}

func TestEncodeDecodeBlockRoundtrip(t *testing.T) {
	in := names(
		"SRR608881.1 FCD0F0WABXX:7:1101:1439:2199/1",
		"SRR608881.2 FCD0F0WABXX:7:1101:1458:2211/1",
		"SRR608881.3 FCD0F0WABXX:7:1101:1458:2211/1",
	)

	blob, err := EncodeBlock(in)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	out, err := DecodeBlock(blob, len(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.Equal(t, in[i], out[i])
	}
}

func TestEncodeDecodeManyDuplicateLines(t *testing.T) {
	lines := make([]string, 500)
	for i := range lines {
		lines[i] = "SRR608881.1 FCD0F0WABXX:7:1101:1439:2199/1"
	}
	in := names(lines...)

	blob, err := EncodeBlock(in)
	require.NoError(t, err)

	out, err := DecodeBlock(blob, len(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.Equal(t, in[i], out[i])
	}
}

func TestEncodeBlockRejectsOverMaxNames(t *testing.T) {
	in := names("a", "b", "c")
	_, err := EncodeBlock(in, WithMaxNames(2))
	require.Error(t, err)
}

func TestDecodeBlockRejectsShortHeader(t *testing.T) {
	_, err := DecodeBlock([]byte{0x01, 0x02}, 1)
	require.Error(t, err)
}

func TestDecodeBlockRejectsTruncatedBody(t *testing.T) {
	in := names("read1", "read2")
	blob, err := EncodeBlock(in)
	require.NoError(t, err)

	_, err = DecodeBlock(blob[:len(blob)-1], len(in))
	require.Error(t, err)
}

func TestStandaloneEnvelopeRoundtrip(t *testing.T) {
	data := bytes.Repeat([]byte("abcabcabcabc"), 10)
	blob, err := EncodeStandalone(data)
	require.NoError(t, err)
	require.Equal(t, byte(standaloneTag), blob[0])

	out, err := DecodeStandalone(blob)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDecodeStandaloneRejectsWrongTag(t *testing.T) {
	_, err := DecodeStandalone([]byte{0x00, 0x01})
	require.Error(t, err)
}

func TestDedupIndexSaveLoadRoundtrip(t *testing.T) {
	idx := NewDedupIndex()
	idx.add([]byte("first"))
	idx.add([]byte("second"))
	idx.add(nil)

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	loaded, err := LoadDedupIndex(&buf)
	require.NoError(t, err)
	require.Equal(t, idx.len(), loaded.len())
	for i := 0; i < idx.len(); i++ {
		require.Equal(t, idx.at(i), loaded.at(i))
	}
}

func TestResumeIndexIsHonoured(t *testing.T) {
	first := names("read1", "read2")
	_, idx, err := EncodeBlockResumable(first)
	require.NoError(t, err)
	require.Greater(t, idx.len(), 0)

	var seedForEncode, seedForDecode bytes.Buffer
	require.NoError(t, idx.Save(&seedForEncode))
	require.NoError(t, idx.Save(&seedForDecode))

	second := names("read1", "read2", "read3")
	blob, _, err := EncodeBlockResumable(second, WithResumeIndex(&seedForEncode))
	require.NoError(t, err)

	out, err := DecodeBlock(blob, len(second), WithResumeIndex(&seedForDecode))
	require.NoError(t, err)
	for i := range second {
		require.Equal(t, second[i], out[i])
	}
}

package blockdriver

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// DedupIndex remembers the content of every descriptor stream a block
// has already written, so a later stream with identical bytes can be
// emitted as a back-reference record (marker byte, uint16_le index,
// type byte) instead of being compressed again. xxhash.Sum64 filters candidates before the byte-for-byte
// bytes.Equal check runs, the same fingerprint-then-verify shape
// arloliu-mebo's internal/hash package uses for blob identity.
type DedupIndex struct {
	entries [][]byte
	hashes  []uint64
}

// NewDedupIndex returns an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{}
}

// find returns the index of a previously added entry with identical
// bytes to raw, if any.
func (idx *DedupIndex) find(raw []byte) (int, bool) {
	h := xxhash.Sum64(raw)
	for i, hh := range idx.hashes {
		if hh == h && bytes.Equal(idx.entries[i], raw) {
			return i, true
		}
	}
	return 0, false
}

// add records raw as a new entry and returns its index.
func (idx *DedupIndex) add(raw []byte) int {
	idx.hashes = append(idx.hashes, xxhash.Sum64(raw))
	idx.entries = append(idx.entries, append([]byte(nil), raw...))
	return len(idx.entries) - 1
}

func (idx *DedupIndex) len() int { return len(idx.entries) }

func (idx *DedupIndex) at(i int) []byte { return idx.entries[i] }

// Entries returns a copy of idx's entries in insertion order, so a
// decoder seeded with the same saved index a resumed encode used can
// reconstruct identical dedup-reference indices.
func (idx *DedupIndex) Entries() [][]byte {
	out := make([][]byte, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Save serializes idx as one lz4 block, so a later process can seed
// EncodeBlockResumable's dedup table from it (WithResumeIndex) without
// resending every descriptor this block already compressed once. The
// wire form is a flat uint32_le-length-prefixed concatenation of every
// entry, lz4-block-compressed as a whole (entries are typically small
// and numerous, so one shared compression context beats framing each
// one individually) and written behind its own uint32_le uncompressed-
// and compressed-size header.
func (idx *DedupIndex) Save(w io.Writer) error {
	var plain bytes.Buffer
	var lenBuf [4]byte
	for _, e := range idx.entries {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e)))
		plain.Write(lenBuf[:])
		plain.Write(e)
	}

	src := plain.Bytes()
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var lc lz4.Compressor
	n, err := lc.CompressBlock(src, dst)
	if err != nil {
		return errors.Wrap(err, "blockdriver: lz4 compress dedup index")
	}
	// CompressBlock returns n == 0 when the input doesn't compress;
	// fall back to storing it verbatim rather than treating that as an
	// error.
	stored := dst[:n]
	compressed := n > 0
	if !compressed {
		stored = src
	}

	var header [9]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(src)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(stored)))
	if compressed {
		header[8] = 1
	}
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// LoadDedupIndex reads back an index written by Save.
func LoadDedupIndex(r io.Reader) (*DedupIndex, error) {
	var header [9]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "blockdriver: read dedup index header")
	}
	plainLen := binary.LittleEndian.Uint32(header[0:4])
	storedLen := binary.LittleEndian.Uint32(header[4:8])
	compressed := header[8] == 1

	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, errors.Wrap(err, "blockdriver: read dedup index body")
	}

	plain := stored
	if compressed {
		plain = make([]byte, plainLen)
		n, err := lz4.UncompressBlock(stored, plain)
		if err != nil {
			return nil, errors.Wrap(err, "blockdriver: lz4 decompress dedup index")
		}
		plain = plain[:n]
	}

	idx := NewDedupIndex()
	offset := 0
	for offset < len(plain) {
		if offset+4 > len(plain) {
			return nil, errors.New("blockdriver: truncated dedup index entry length")
		}
		n := int(binary.LittleEndian.Uint32(plain[offset : offset+4]))
		offset += 4
		if offset+n > len(plain) {
			return nil, errors.New("blockdriver: truncated dedup index entry body")
		}
		idx.add(plain[offset : offset+n])
		offset += n
	}
	return idx, nil
}

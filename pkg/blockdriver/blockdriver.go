package blockdriver

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/jkbonfield/gnamec/pkg/codec"
	"github.com/jkbonfield/gnamec/pkg/tokenize"
)

// dedupMarker flags a descriptor emitted as a back-reference to an
// earlier, byte-identical descriptor rather than a freshly compressed
// blob. The reference index counts only freshly-compressed (literal)
// descriptors in emission order — a dedup hit never introduces a new
// entry of its own, since its bytes are already recorded.
const dedupMarker = 0xFF

// standaloneTag prefixes the single-blob envelope a caller uses when a
// batch isn't worth tokenising (e.g. a lone name, or arbitrary bytes fed
// straight through the meta-codec). It shares the 0xFF value with
// dedupMarker but the two never appear in the same stream: this byte is
// only ever read as the first byte of a whole file, never as a
// per-descriptor ttype.
const standaloneTag = 0xFF

// EncodeBlock tokenises names and writes every resulting descriptor
// stream through the meta-codec, framed per the block wire format:
// a uint32_le total size followed by one record per non-empty
// (position, type) stream. Identical descriptor bytes (common for the
// DUP/DIFF type-0 stream once a block settles into a run of near-
// duplicate names) are written once and referenced afterwards instead
// of being compressed again.
func EncodeBlock(names [][]byte, opts ...Option) ([]byte, error) {
	out, _, err := EncodeBlockResumable(names, opts...)
	return out, err
}

// EncodeBlockResumable is EncodeBlock plus the dedup index accumulated
// while building the block, so a caller can persist it (DedupIndex.Save)
// and feed it back into a later block via WithResumeIndex — letting that
// later block detect repeats against descriptors this one already
// compressed, without resending them.
func EncodeBlockResumable(names [][]byte, opts ...Option) ([]byte, *DedupIndex, error) {
	o := build(opts)
	if o.maxNames > 0 && len(names) > o.maxNames {
		return nil, nil, errors.Errorf("blockdriver: %d names exceeds configured maximum of %d", len(names), o.maxNames)
	}

	d, err := tokenize.Encode(names)
	if err != nil {
		return nil, nil, errors.Wrap(err, "blockdriver: tokenise")
	}

	idx := NewDedupIndex()
	if o.resume != nil {
		seeded, err := LoadDedupIndex(o.resume)
		if err != nil {
			return nil, nil, errors.Wrap(err, "blockdriver: load resume index")
		}
		idx = seeded
	}

	var body []byte
	dedupHits := 0
	codecOpts := o.codecOptions()

	for p := 0; p < d.Positions(); p++ {
		for t := 0; t < tokenize.MaxTypes; t++ {
			kind := tokenize.Kind(t)
			raw := d.Stream(p, kind)
			if raw == nil {
				continue
			}

			if j, ok := idx.find(raw); ok {
				var rec [4]byte
				rec[0] = dedupMarker
				binary.LittleEndian.PutUint16(rec[1:3], uint16(j))
				rec[3] = byte(t)
				body = append(body, rec[:]...)
				dedupHits++
				continue
			}

			blob, err := codec.Compress(raw, codecOpts)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "blockdriver: compress position %d type %d", p, t)
			}
			body = append(body, byte(t))
			body = append(body, blob...)
			idx.add(raw)
		}
	}

	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	out = append(out, body...)

	o.logger.Info().
		Int("names", len(names)).
		Int("positions", d.Positions()).
		Int("descriptors", idx.len()).
		Int("dedup_hits", dedupHits).
		Int("bytes", len(out)).
		Msg("block encoded")

	return out, idx, nil
}

// DecodeBlock reverses EncodeBlock: it walks the block's descriptor
// records, rebuilding a Descriptors set (resolving dedup back-references
// against earlier entries in the same block), then hands it to
// tokenize.Decode to reconstruct the nLines original names.
func DecodeBlock(in []byte, nLines int, opts ...Option) ([][]byte, error) {
	o := build(opts)

	if len(in) < 4 {
		return nil, errors.New("blockdriver: block shorter than its length header")
	}
	total := int(binary.LittleEndian.Uint32(in))
	body := in[4:]
	if len(body) < total {
		return nil, errors.Errorf("blockdriver: block declares %d body bytes but only %d available", total, len(body))
	}
	body = body[:total]

	d := tokenize.NewDescriptors()
	var entries [][]byte
	if o.resume != nil {
		seeded, err := LoadDedupIndex(o.resume)
		if err != nil {
			return nil, errors.Wrap(err, "blockdriver: load resume index")
		}
		entries = seeded.Entries()
	}
	pos := -1
	offset := 0

	for offset < len(body) {
		ttype := body[offset]
		offset++

		if ttype == dedupMarker {
			if offset+3 > len(body) {
				return nil, errors.New("blockdriver: truncated dedup record")
			}
			j := int(binary.LittleEndian.Uint16(body[offset : offset+2]))
			ttypeReal := body[offset+2]
			offset += 3

			if j < 0 || j >= len(entries) {
				return nil, errors.Errorf("blockdriver: dedup reference %d out of range (%d entries so far)", j, len(entries))
			}
			raw := entries[j]
			if tokenize.Kind(ttypeReal) == tokenize.KindNone {
				pos++
			}
			d.SetStream(pos, tokenize.Kind(ttypeReal), raw)
			continue
		}

		if tokenize.Kind(ttype) == tokenize.KindNone {
			pos++
		}

		remain := clamp(len(body)-offset, 0, len(body))
		raw, used, err := codec.Uncompress(body[offset : offset+remain])
		if err != nil {
			return nil, errors.Wrapf(err, "blockdriver: decompress position %d type %d", pos, ttype)
		}
		offset += used

		d.SetStream(pos, tokenize.Kind(ttype), raw)
		entries = append(entries, raw)
	}

	names, err := tokenize.Decode(d, nLines)
	if err != nil {
		o.logger.Error().Err(err).Int("lines", nLines).Msg("block decode failed")
		return nil, errors.Wrap(err, "blockdriver: detokenise")
	}

	o.logger.Info().Int("names", len(names)).Int("bytes", len(in)).Msg("block decoded")
	return names, nil
}

// EncodeStandalone compresses data through the meta-codec directly,
// without tokenising it as read names, and prefixes it with
// standaloneTag so DecodeStandalone (and a CLI reading a whole file) can
// tell it apart from a block.
func EncodeStandalone(data []byte, opts ...Option) ([]byte, error) {
	o := build(opts)
	blob, err := codec.Compress(data, o.codecOptions())
	if err != nil {
		return nil, errors.Wrap(err, "blockdriver: compress standalone envelope")
	}
	out := make([]byte, 1, 1+len(blob))
	out[0] = standaloneTag
	return append(out, blob...), nil
}

// DecodeStandalone reverses EncodeStandalone.
func DecodeStandalone(in []byte) ([]byte, error) {
	if len(in) == 0 || in[0] != standaloneTag {
		return nil, errors.New("blockdriver: not a standalone envelope")
	}
	out, _, err := codec.Uncompress(in[1:])
	if err != nil {
		return nil, errors.Wrap(err, "blockdriver: decompress standalone envelope")
	}
	return out, nil
}

// Package blockdriver wires the name tokeniser (pkg/tokenize) to the
// meta-codec (pkg/codec), turning a batch of read names into the
// block-framed wire format and back. It is the layer tokenize and codec
// never reach into each other directly for: tokenize knows nothing about
// compression, codec knows nothing about descriptors, and blockdriver is
// where a block's descriptors get fingerprinted, deduplicated, and
// compressed one stream at a time.
package blockdriver

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/jkbonfield/gnamec/pkg/codec"
)

// Options controls how a block is built. The zero value is usable:
// DefaultOptions fills in the same defaults a caller gets by never
// touching Options at all.
type Options struct {
	maxNames  int
	allowX4   bool
	allowZstd bool
	logger    zerolog.Logger
	resume    io.Reader
}

// Option mutates an Options value under construction. Named after the
// functional-option constructors this module's CLI and library callers
// both use (WithMaxNames, WithBlockSize in spirit — block size here is
// simply len(names), so there is no separate knob for it).
type Option func(*Options)

// DefaultOptions returns the options EncodeBlock/DecodeBlock use when no
// Option is supplied: no cap on block size, X4 enabled, zstd disabled
// (matching pkg/codec's own default bias against it), and a disabled
// logger.
func DefaultOptions() Options {
	return Options{
		maxNames: 0,
		allowX4:  true,
		logger:   zerolog.Nop(),
	}
}

// WithMaxNames caps how many names EncodeBlock will accept in one call;
// zero (the default) means unlimited. Exceeding the cap is an error,
// not a silent truncation.
func WithMaxNames(n int) Option {
	return func(o *Options) { o.maxNames = n }
}

// WithAllowX4 toggles the meta-codec's 4-way deinterleave candidate.
func WithAllowX4(allow bool) Option {
	return func(o *Options) { o.allowX4 = allow }
}

// WithAllowZstd toggles the meta-codec's zstd fallback tier.
func WithAllowZstd(allow bool) Option {
	return func(o *Options) { o.allowZstd = allow }
}

// WithLogger installs a structured logger for block-boundary events
// (a block encoded, a block decoded, a block decode failure). The
// tokeniser and meta-codec hot paths never log; only block-level
// bookkeeping does.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithResumeIndex seeds a block's descriptor dedup table from a
// previously saved index (DedupIndex.Save), so a block encoded in a
// later process can still detect repeats against descriptors an earlier
// run already saw, and emit a back-reference instead of recompressing
// them. DecodeBlock must be given the same saved index so its entry
// numbering lines up with the encoder's; otherwise a dedup reference
// into the seeded portion cannot be resolved.
func WithResumeIndex(r io.Reader) Option {
	return func(o *Options) { o.resume = r }
}

func build(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o Options) codecOptions() codec.Options {
	return codec.Options{AllowX4: o.allowX4, AllowZstd: o.allowZstd}
}

package blockdriver

import "golang.org/x/exp/constraints"

// clamp restricts v to [lo, hi]. DecodeBlock uses it for the
// remaining-body-length accounting; the dedup-index bound there is
// checked directly.
func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}

	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// Lerp maps x from [inLo, inHi] onto [0, 1] without clamping. A degenerate input range maps to 0.
func Lerp[T constraints.Float](x, inLo, inHi T) T {
	if inHi == inLo {
		return 0
	}

	return (x - inLo) / (inHi - inLo)
}

package util

import "math"

// SubU64 returns now-prev. ok is false when the counter went backwards,
// which callers treat as a counter reset rather than a negative delta.
func SubU64(now, prev uint64) (delta uint64, ok bool) {
	if now >= prev {
		return now - prev, true
	}
	return 0, false
}

// SafeDiv divides n by d, flooring the magnitude of d at eps so an idle
// denominator never produces Inf or NaN.
func SafeDiv(n, d, eps float64) float64 {
	if eps <= 0 {
		eps = 1e-12
	}
	if d >= 0 && d < eps {
		d = eps
	} else if d < 0 && d > -eps {
		d = -eps
	}
	return n / d
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	// guard against NaN
	if math.IsNaN(x) {
		return 0
	}
	return x
}

package mathutil

import "math"

// LogZero represents log(0).
var LogZero = math.Inf(-1)

// LogFloorProb is the smallest positive normalized float32. Raw probabilities are
// offset by it before taking the log so that zero probabilities stay finite.
const LogFloorProb = 1.1754943508222875e-38

// LogFloor is log(LogFloorProb).
var LogFloor = math.Log(LogFloorProb)

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a > b {
		if math.IsInf(b, -1) {
			return a
		}
		d := b - a
		if d < -36.0 {
			return a
		}
		return a + math.Log1p(math.Exp(d))
	}
	if math.IsInf(a, -1) {
		return b
	}
	d := a - b
	if d < -36.0 {
		return b
	}
	return b + math.Log1p(math.Exp(d))
}

// LogMax returns the larger of a and b. It has the signature of LogAdd so the two
// can be swapped as merge functions.
func LogMax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// SafeLog returns log(p + LogFloorProb).
func SafeLog(p float64) float64 {
	return math.Log(p + LogFloorProb)
}

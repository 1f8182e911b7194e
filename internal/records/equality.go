package records

import "math"

// tenthEpsilon absorbs binary representation noise on differences of
// exactly 0.05.
const tenthEpsilon = 1e-9

// tenths maps v to its bucket at decimal-1 precision: floor((v+0.05)*10).
func tenths(v float64) int64 {
	return int64(math.Floor((v + 0.05) * 10))
}

// EqualTenth reports whether a and b are the same record value at one
// decimal of precision. Values in the same tenth bucket, or closer than
// 0.05, are equal.
func EqualTenth(a, b float64) bool {
	return tenths(a) == tenths(b) || math.Abs(a-b) <= 0.05+tenthEpsilon
}

func equalInteger(a, b float64) bool {
	return math.Round(a) == math.Round(b)
}

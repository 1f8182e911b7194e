package aggregate

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type reduction int

const (
	opMin reduction = iota
	opMax
	opSum
	opAvg
)

func (r reduction) String() string {
	switch r {
	case opMin:
		return "min"
	case opMax:
		return "max"
	case opSum:
		return "sum"
	default:
		return "avg"
	}
}

// apply reduces xs. The second result is false when xs is empty, which
// makes every reduction null-safe.
func (r reduction) apply(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	switch r {
	case opMin:
		return floats.Min(xs), true
	case opMax:
		return floats.Max(xs), true
	case opSum:
		return floats.Sum(xs), true
	default:
		return stat.Mean(xs, nil), true
	}
}

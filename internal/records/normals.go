package records

import "github.com/chrissnell/meteodb/internal/aggregate"

// Normals are the historical means of monthly columns for one station and
// calendar month, keyed by monthly column.
type Normals aggregate.Values

var deltaColumns = []struct {
	delta  string
	source string
}{
	{aggregate.ColTempAvgDelta, aggregate.ColTempAvgAvg},
	{aggregate.ColTxAvgDelta, aggregate.ColTxAvg},
	{aggregate.ColTnAvgDelta, aggregate.ColTnAvg},
	{aggregate.ColRainfallDelta, aggregate.ColMonthRainfall},
	{aggregate.ColInsolationTimeDelta, aggregate.ColMonthInsolation},
}

// NormalColumns lists the monthly columns normals are computed for.
func NormalColumns() []string {
	cols := make([]string, len(deltaColumns))
	for i, c := range deltaColumns {
		cols[i] = c.source
	}
	return cols
}

// ApplyNormals fills the delta-from-normal columns of mv. A delta is set
// only when both the month's value and its normal are known.
func ApplyNormals(mv *aggregate.MonthlyValues, n Normals) {
	for _, c := range deltaColumns {
		x, ok := mv.Get(c.source)
		if !ok {
			continue
		}
		normal, ok := n[c.source]
		if !ok {
			continue
		}
		mv.Values[c.delta] = x - normal
	}
}

package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/slo-ranker/internal/table"
)

// ColumnChange is the windowed percentage change of a column.
type ColumnChange struct {
	Column string  `json:"column"`
	Change float64 `json:"change"`
}

type scoredColumn struct {
	column string
	score  float64
}

// alignColumns returns the columns shared by both tables in normal order, plus the columns
// unique to each side.
func alignColumns(normal, abnormal []string) (common, onlyNormal, onlyAbnormal []string) {
	inAbnormal := make(map[string]struct{}, len(abnormal))
	for _, c := range abnormal {
		inAbnormal[c] = struct{}{}
	}
	inNormal := make(map[string]struct{}, len(normal))
	for _, c := range normal {
		inNormal[c] = struct{}{}
		if _, ok := inAbnormal[c]; ok {
			common = append(common, c)
		} else {
			onlyNormal = append(onlyNormal, c)
		}
	}
	for _, c := range abnormal {
		if _, ok := inNormal[c]; !ok {
			onlyAbnormal = append(onlyAbnormal, c)
		}
	}
	return common, onlyNormal, onlyAbnormal
}

// minMaxScale maps each column onto [0,1] using its own min and max. Non-finite values
// become NaN. Columns without spread scale to 0 and are returned in flat.
func minMaxScale(t *table.Table) (*table.Table, []string, error) {
	var flat []string
	scaled, err := t.MapColumns(func(name string, values []float64) []float64 {
		observed := finite(values)
		var lo, hi float64
		if len(observed) > 0 {
			lo, hi = floats.Min(observed), floats.Max(observed)
		}
		spread := hi - lo
		if spread == 0 {
			flat = append(flat, name)
		}
		for i, v := range values {
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				values[i] = math.NaN()
			case spread == 0:
				values[i] = 0
			default:
				values[i] = (v - lo) / spread
			}
		}
		return values
	})
	return scaled, flat, err
}

// percentChanges computes the first-to-last change of every window column. Columns whose
// first sample is zero are returned in zeroStart.
func percentChanges(window *table.Table, direction ChangeDirection) (changes []ColumnChange, zeroStart []string) {
	last := window.NumRows() - 1
	for _, name := range window.Columns() {
		values, _ := window.Column(name)
		change := math.NaN()
		if last >= 0 {
			var ok bool
			change, ok = direction.PercentChange(values[0], values[last])
			if !ok {
				zeroStart = append(zeroStart, name)
			}
		}
		changes = append(changes, ColumnChange{Column: name, Change: change})
	}
	return changes, zeroStart
}

// topCandidates orders changes descending (NaN last, ties keep column order) and keeps n.
func topCandidates(changes []ColumnChange, n int) []ColumnChange {
	sorted := append([]ColumnChange(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Change, sorted[j].Change
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ksDistance is the two-sample Kolmogorov-Smirnov statistic over the finite values of a
// and b. A side without finite values is maximally distant.
func ksDistance(a, b []float64) float64 {
	x, y := finite(a), finite(b)
	if len(x) == 0 || len(y) == 0 {
		return 1
	}
	sort.Float64s(x)
	sort.Float64s(y)
	return stat.KolmogorovSmirnov(x, nil, y, nil)
}

// similarity converts a distance into a score in (0,1].
func similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

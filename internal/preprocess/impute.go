package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/slo-ranker/internal/table"
)

// ImputeMethod names a missing-value fill strategy.
type ImputeMethod string

const (
	ImputeNone        ImputeMethod = "none"
	ImputeMean        ImputeMethod = "mean"
	ImputeMedian      ImputeMethod = "median"
	ImputeZero        ImputeMethod = "zero"
	ImputeForward     ImputeMethod = "ffill"
	ImputeBackward    ImputeMethod = "bfill"
	ImputeInterpolate ImputeMethod = "interpolate"
)

// ParseImputeMethod validates a configured method name. The empty string maps to ImputeNone.
func ParseImputeMethod(name string) (ImputeMethod, error) {
	method := ImputeMethod(strings.ToLower(strings.TrimSpace(name)))
	switch method {
	case "":
		return ImputeNone, nil
	case ImputeNone, ImputeMean, ImputeMedian, ImputeZero, ImputeForward, ImputeBackward, ImputeInterpolate:
		return method, nil
	}
	return "", fmt.Errorf("unknown imputation method %q", name)
}

// Impute returns a copy of t with missing values filled per column. Columns without any
// observation are filled with zero whatever the method.
func Impute(t *table.Table, method ImputeMethod) (*table.Table, error) {
	if t == nil {
		return nil, fmt.Errorf("impute: nil table")
	}
	var fill func([]float64) []float64
	switch method {
	case "", ImputeNone:
		return t, nil
	case ImputeMean:
		fill = fillConstant(func(observed []float64) float64 { return stat.Mean(observed, nil) })
	case ImputeMedian:
		fill = fillConstant(median)
	case ImputeZero:
		fill = fillConstant(func([]float64) float64 { return 0 })
	case ImputeForward:
		fill = fillForward
	case ImputeBackward:
		fill = fillBackward
	case ImputeInterpolate:
		fill = fillLinear
	default:
		return nil, fmt.Errorf("impute: unknown method %q", method)
	}

	return t.MapColumns(func(_ string, values []float64) []float64 {
		if len(observedValues(values)) == 0 {
			for i := range values {
				values[i] = 0
			}
			return values
		}
		return fill(values)
	})
}

func observedValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// median averages the two middle values of an even-sized sample.
func median(observed []float64) float64 {
	sorted := append([]float64(nil), observed...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

func fillConstant(value func([]float64) float64) func([]float64) []float64 {
	return func(values []float64) []float64 {
		v := value(observedValues(values))
		for i := range values {
			if math.IsNaN(values[i]) {
				values[i] = v
			}
		}
		return values
	}
}

// fillForward carries the last observation forward; leading gaps take the first observation.
func fillForward(values []float64) []float64 {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
	return fillBackwardOnly(values)
}

// fillBackward carries the next observation backward; trailing gaps take the last observation.
func fillBackward(values []float64) []float64 {
	values = fillBackwardOnly(values)
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
	return values
}

func fillBackwardOnly(values []float64) []float64 {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
	return values
}

// fillLinear interpolates interior gaps between neighbouring observations. Edge gaps take
// the nearest observation.
func fillLinear(values []float64) []float64 {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return fillForward(values)
}

package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ChangeDirection states which way a metric moves when the service degrades.
type ChangeDirection int

const (
	// HigherIsWorse metrics (latency, error counts) degrade as they rise.
	HigherIsWorse ChangeDirection = iota
	// LowerIsWorse metrics (availability) degrade as they drop.
	LowerIsWorse
)

func (d ChangeDirection) String() string {
	if d == LowerIsWorse {
		return "lower_is_worse"
	}
	return "higher_is_worse"
}

// ParseChangeDirection parses "higher_is_worse" or "lower_is_worse".
func ParseChangeDirection(value string) (ChangeDirection, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "higher_is_worse", "higher":
		return HigherIsWorse, nil
	case "lower_is_worse", "lower":
		return LowerIsWorse, nil
	}
	return HigherIsWorse, fmt.Errorf("unknown change direction %q", value)
}

// PercentChange returns the degradation between the first and last sample, in percent.
// Positive values always mean "got worse". ok is false when first is zero, in which case
// the change is reported as zero.
func (d ChangeDirection) PercentChange(first, last float64) (change float64, ok bool) {
	if first == 0 {
		return 0, false
	}
	if d == LowerIsWorse {
		return (first - last) / first * 100, true
	}
	return (last - first) / first * 100, true
}

// ChangePolicy maps metric names to change directions.
type ChangePolicy struct {
	byMetric map[string]ChangeDirection
	fallback ChangeDirection
}

// DefaultChangePolicy treats availability as lower-is-worse and every other metric as
// higher-is-worse.
func DefaultChangePolicy() ChangePolicy {
	return ChangePolicy{
		byMetric: map[string]ChangeDirection{"availability": LowerIsWorse},
		fallback: HigherIsWorse,
	}
}

// NewChangePolicy extends the default policy with metric → direction overrides.
func NewChangePolicy(overrides map[string]string) (ChangePolicy, error) {
	policy := DefaultChangePolicy()
	for metric, value := range overrides {
		direction, err := ParseChangeDirection(value)
		if err != nil {
			return ChangePolicy{}, fmt.Errorf("metric %q: %w", metric, err)
		}
		policy.byMetric[strings.ToLower(metric)] = direction
	}
	return policy, nil
}

// Direction returns the configured direction for metric.
func (p ChangePolicy) Direction(metric string) ChangeDirection {
	if d, ok := p.byMetric[strings.ToLower(metric)]; ok {
		return d
	}
	return p.fallback
}

// String lists the per-metric directions in metric order, e.g. "availability=lower_is_worse".
func (p ChangePolicy) String() string {
	metrics := make([]string, 0, len(p.byMetric))
	for metric := range p.byMetric {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	parts := make([]string, 0, len(metrics)+1)
	for _, metric := range metrics {
		parts = append(parts, metric+"="+p.byMetric[metric].String())
	}
	parts = append(parts, "*="+p.fallback.String())
	return strings.Join(parts, ",")
}

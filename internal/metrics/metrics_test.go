package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveAnalysisNormalisesOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	success := map[string]string{"analyzer": "kstest", "outcome": OutcomeSuccess}
	failure := map[string]string{"analyzer": "kstest", "outcome": OutcomeError}

	before := counterValue(t, reg, "slo_ranker_analyses_total", success)
	ObserveAnalysis("kstest", -time.Second, "something")
	assert.Equal(t, before+1, counterValue(t, reg, "slo_ranker_analyses_total", success))

	before = counterValue(t, reg, "slo_ranker_analyses_total", failure)
	ObserveAnalysis("kstest", time.Millisecond, OutcomeError)
	assert.Equal(t, before+1, counterValue(t, reg, "slo_ranker_analyses_total", failure))
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	kind := map[string]string{"kind": "reference_missing"}
	before := counterValue(t, reg, "slo_ranker_diagnostics_total", kind)
	IncDiagnostic("reference_missing")
	assert.Equal(t, before+1, counterValue(t, reg, "slo_ranker_diagnostics_total", kind))

	hit := map[string]string{"result": CacheHit}
	miss := map[string]string{"result": CacheMiss}
	hits := counterValue(t, reg, "slo_ranker_cache_requests_total", hit)
	misses := counterValue(t, reg, "slo_ranker_cache_requests_total", miss)
	ObserveCache(true)
	ObserveCache(false)
	ObserveCache(false)
	assert.Equal(t, hits+1, counterValue(t, reg, "slo_ranker_cache_requests_total", hit))
	assert.Equal(t, misses+2, counterValue(t, reg, "slo_ranker_cache_requests_total", miss))

	ObserveCandidates(4)
}

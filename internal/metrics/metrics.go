package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analyses (invalid input or dependency issues).
	OutcomeError = "error"

	// CacheHit and CacheMiss label result cache lookups.
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slo_ranker",
			Name:      "analyses_total",
			Help:      "Total number of root-cause analyses handled, partitioned by analyzer and outcome.",
		},
		[]string{"analyzer", "outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slo_ranker",
			Name:      "analysis_seconds",
			Help:      "Analysis latency in seconds, including upstream fetches.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	candidatesPerAnalysis = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slo_ranker",
			Name:      "candidates",
			Help:      "Number of candidate columns kept by the change filter.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slo_ranker",
			Name:      "diagnostics_total",
			Help:      "Diagnostics raised while ranking, partitioned by kind.",
		},
		[]string{"kind"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slo_ranker",
			Name:      "cache_requests_total",
			Help:      "Analysis result cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches slo-ranker collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		candidatesPerAnalysis,
		diagnosticsTotal,
		cacheRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(analyzer string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(analyzer, label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveCandidates records the size of a candidate set.
func ObserveCandidates(n int) {
	candidatesPerAnalysis.Observe(float64(n))
}

// IncDiagnostic counts one diagnostic of the given kind.
func IncDiagnostic(kind string) {
	diagnosticsTotal.WithLabelValues(kind).Inc()
}

// ObserveCache counts one result cache lookup.
func ObserveCache(hit bool) {
	if hit {
		cacheRequestsTotal.WithLabelValues(CacheHit).Inc()
		return
	}
	cacheRequestsTotal.WithLabelValues(CacheMiss).Inc()
}

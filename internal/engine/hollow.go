package engine

import (
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/miradorstack/slo-ranker/internal/models"
)

// Hollow simulates a ranking: it runs the same preprocessing as KSTest, then returns TopK
// causes on the target node with random scores. It exists to exercise callers without the
// statistical logic.
type Hollow struct {
	opts   HollowOptions
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHollow constructs the stub analyzer.
func NewHollow(opts HollowOptions, logger *slog.Logger) *Hollow {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := Options{Hollow: opts}.withDefaults()
	opts = defaults.Hollow

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Hollow{
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Kind implements Analyzer.
func (h *Hollow) Kind() string { return KindHollow }

// Deterministic implements Analyzer.
func (h *Hollow) Deterministic() bool { return false }

// Rank implements Analyzer.
func (h *Hollow) Rank(in models.AnalysisInput) (Ranking, error) {
	normal, abnormal, err := reduceInputs(in, h.opts.Imputation)
	if err != nil {
		return Ranking{}, err
	}
	h.logger.Debug("hollow analysis inputs",
		slog.Int("normal_rows", normal.NumRows()),
		slog.Int("abnormal_rows", abnormal.NumRows()),
		slog.Int("columns", normal.NumColumns()))

	causes := make([]models.PotentialRootCause, 0, h.opts.TopK)
	h.mu.Lock()
	for i := 0; i < h.opts.TopK; i++ {
		causes = append(causes, models.PotentialRootCause{
			Node:   in.TargetNode,
			Metric: in.TargetMetric,
			// Float64 is in [0,1); flip it so scores stay in (0,1].
			Score: 1 - h.rng.Float64(),
		})
	}
	h.mu.Unlock()

	sort.SliceStable(causes, func(i, j int) bool { return causes[i].Score > causes[j].Score })
	return Ranking{Causes: causes}, nil
}

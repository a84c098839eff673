package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/preprocess"
	"github.com/miradorstack/slo-ranker/internal/table"
)

const (
	// KindKSTest selects the distribution-similarity ranking.
	KindKSTest = "kstest"
	// KindHollow selects the random-score stub.
	KindHollow = "hollow"

	// DefaultReferenceNode is the column every candidate is compared against.
	DefaultReferenceNode = "PetSite"
	// DefaultWindowSize is the number of trailing rows used for change and similarity.
	DefaultWindowSize = 5
	// DefaultTopN caps the candidate set produced by the change filter.
	DefaultTopN = 10
	// DefaultHollowTopK is the number of simulated causes returned by the stub.
	DefaultHollowTopK = 3
)

// ErrUnknownAnalyzer is returned by New for an unsupported analyzer kind.
var ErrUnknownAnalyzer = errors.New("unknown analyzer")

// Analyzer ranks potential root causes for an SLO violation.
type Analyzer interface {
	// Kind returns the configured analyzer name.
	Kind() string
	// Deterministic reports whether identical inputs always produce identical rankings.
	Deterministic() bool
	// Rank runs the analysis. Errors are reserved for invalid inputs.
	Rank(in models.AnalysisInput) (Ranking, error)
}

// Ranking is the full outcome of an analysis.
type Ranking struct {
	Causes      []models.PotentialRootCause
	Candidates  []ColumnChange
	Diagnostics []models.Diagnostic
}

func (r *Ranking) diagnose(kind models.DiagnosticKind, message string, columns ...string) {
	r.Diagnostics = append(r.Diagnostics, models.Diagnostic{Kind: kind, Message: message, Columns: columns})
}

// Options configures analyzer construction.
type Options struct {
	Kind          string
	ReferenceNode string
	WindowSize    int
	TopN          int
	Imputation    preprocess.ImputeMethod
	Policy        ChangePolicy
	Hollow        HollowOptions
}

// HollowOptions configures the random-score stub.
type HollowOptions struct {
	TopK       int
	Imputation preprocess.ImputeMethod
	// Seed makes the stub reproducible when non-zero.
	Seed uint64
}

// DefaultOptions returns the historical ranking parameters.
func DefaultOptions() Options {
	return Options{
		Kind:          KindKSTest,
		ReferenceNode: DefaultReferenceNode,
		WindowSize:    DefaultWindowSize,
		TopN:          DefaultTopN,
		Imputation:    preprocess.ImputeNone,
		Policy:        DefaultChangePolicy(),
		Hollow: HollowOptions{
			TopK:       DefaultHollowTopK,
			Imputation: preprocess.ImputeMean,
		},
	}
}

func (o Options) withDefaults() Options {
	if o.ReferenceNode == "" {
		o.ReferenceNode = DefaultReferenceNode
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Imputation == "" {
		o.Imputation = preprocess.ImputeNone
	}
	if o.Policy.byMetric == nil {
		o.Policy = DefaultChangePolicy()
	}
	if o.Hollow.TopK <= 0 {
		o.Hollow.TopK = DefaultHollowTopK
	}
	if o.Hollow.Imputation == "" {
		o.Hollow.Imputation = preprocess.ImputeMean
	}
	return o
}

// New constructs the analyzer selected by opts.Kind.
func New(opts Options, logger *slog.Logger) (Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindKSTest:
		return NewKSTest(opts, logger), nil
	case KindHollow:
		return NewHollow(opts.Hollow, logger), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAnalyzer, opts.Kind)
	}
}

// Analyze runs a and returns only the ordered causes.
func Analyze(a Analyzer, in models.AnalysisInput) ([]models.PotentialRootCause, error) {
	ranking, err := a.Rank(in)
	if err != nil {
		return nil, err
	}
	return ranking.Causes, nil
}

// reduceInputs collapses both raw tables to one column per node for the target
// metric/statistic and applies the imputation method.
func reduceInputs(in models.AnalysisInput, method preprocess.ImputeMethod) (*table.Table, *table.Table, error) {
	if in.NormalMetrics == nil || in.AbnormalMetrics == nil {
		return nil, nil, fmt.Errorf("normal and abnormal metrics are required")
	}
	normal, err := preprocess.Reduce(in.NormalMetrics, in.TargetMetric, in.TargetStatistic)
	if err != nil {
		return nil, nil, fmt.Errorf("normal metrics: %w", err)
	}
	abnormal, err := preprocess.Reduce(in.AbnormalMetrics, in.TargetMetric, in.TargetStatistic)
	if err != nil {
		return nil, nil, fmt.Errorf("abnormal metrics: %w", err)
	}
	if normal, err = preprocess.Impute(normal, method); err != nil {
		return nil, nil, fmt.Errorf("normal metrics: %w", err)
	}
	if abnormal, err = preprocess.Impute(abnormal, method); err != nil {
		return nil, nil, fmt.Errorf("abnormal metrics: %w", err)
	}
	return normal, abnormal, nil
}

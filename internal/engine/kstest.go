package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/miradorstack/slo-ranker/internal/models"
)

// KSTest ranks the nodes whose metric changed most during the violation by how closely their
// recent distribution tracks the reference node.
//
// Steps:
//   - reduce both tables to one column per node and align them on shared columns
//   - stack normal over abnormal rows and min-max scale every column over the stack
//   - keep the trailing window and rank columns by signed percentage change
//   - score the top candidates by 1/(1+D), D being the two-sample KS statistic against the
//     reference column
type KSTest struct {
	opts   Options
	logger *slog.Logger
}

// NewKSTest constructs the KS ranking. Zero-valued options take their defaults.
func NewKSTest(opts Options, logger *slog.Logger) *KSTest {
	if logger == nil {
		logger = slog.Default()
	}
	return &KSTest{opts: opts.withDefaults(), logger: logger}
}

// Kind implements Analyzer.
func (k *KSTest) Kind() string { return KindKSTest }

// Deterministic implements Analyzer.
func (k *KSTest) Deterministic() bool { return true }

// ReferenceNode returns the column candidates are compared against.
func (k *KSTest) ReferenceNode() string { return k.opts.ReferenceNode }

// Fingerprint identifies the options that influence the ranking. Two KSTest values with the
// same fingerprint rank identical inputs identically.
func (k *KSTest) Fingerprint() string {
	return fmt.Sprintf("ref=%s;window=%d;top=%d;impute=%s;policy=%s",
		k.opts.ReferenceNode, k.opts.WindowSize, k.opts.TopN, k.opts.Imputation, k.opts.Policy)
}

// Rank implements Analyzer. Only malformed tables produce an error; every anticipated edge
// case is reported through Ranking.Diagnostics.
func (k *KSTest) Rank(in models.AnalysisInput) (Ranking, error) {
	ranking := Ranking{Causes: []models.PotentialRootCause{}}

	normal, abnormal, err := reduceInputs(in, k.opts.Imputation)
	if err != nil {
		return Ranking{}, err
	}

	common, onlyNormal, onlyAbnormal := alignColumns(normal.Columns(), abnormal.Columns())
	if len(onlyNormal) > 0 {
		k.logger.Info("columns in normal metrics but missing in abnormal metrics", slog.Any("columns", onlyNormal))
		ranking.diagnose(models.DiagnosticAlignmentGap, "columns in normal metrics but missing in abnormal metrics", onlyNormal...)
	}
	if len(onlyAbnormal) > 0 {
		k.logger.Info("columns in abnormal metrics but missing in normal metrics", slog.Any("columns", onlyAbnormal))
		ranking.diagnose(models.DiagnosticAlignmentGap, "columns in abnormal metrics but missing in normal metrics", onlyAbnormal...)
	}
	if len(common) == 0 {
		return ranking, nil
	}

	if normal, err = normal.Select(common); err != nil {
		return Ranking{}, fmt.Errorf("align normal metrics: %w", err)
	}
	if abnormal, err = abnormal.Select(common); err != nil {
		return Ranking{}, fmt.Errorf("align abnormal metrics: %w", err)
	}
	combined, err := normal.Concat(abnormal)
	if err != nil {
		return Ranking{}, fmt.Errorf("combine metrics: %w", err)
	}

	scaled, flat, err := minMaxScale(combined)
	if err != nil {
		return Ranking{}, fmt.Errorf("scale metrics: %w", err)
	}
	if len(flat) > 0 {
		k.logger.Debug("constant columns scaled to zero", slog.Any("columns", flat))
		ranking.diagnose(models.DiagnosticDegenerateScale, "constant columns scaled to zero", flat...)
	}

	window := scaled.Tail(k.opts.WindowSize)
	if window.NumRows() < k.opts.WindowSize {
		k.logger.Debug("window shorter than configured size",
			slog.Int("rows", window.NumRows()), slog.Int("window", k.opts.WindowSize))
		ranking.diagnose(models.DiagnosticInsufficientWindow,
			fmt.Sprintf("only %d of %d window rows available", window.NumRows(), k.opts.WindowSize))
	}
	if window.NumRows() == 0 {
		return ranking, nil
	}

	changes, zeroStart := percentChanges(window, k.opts.Policy.Direction(in.TargetMetric))
	if len(zeroStart) > 0 {
		k.logger.Debug("columns starting at zero reported with no change", slog.Any("columns", zeroStart))
		ranking.diagnose(models.DiagnosticDegenerateChange, "columns starting at zero reported with no change", zeroStart...)
	}
	ranking.Candidates = topCandidates(changes, k.opts.TopN)

	reference, ok := window.Column(k.opts.ReferenceNode)
	if !ok {
		k.logger.Info("reference column not found", slog.String("column", k.opts.ReferenceNode))
		ranking.diagnose(models.DiagnosticReferenceMissing,
			fmt.Sprintf("column %q not found in the data", k.opts.ReferenceNode), k.opts.ReferenceNode)
		return ranking, nil
	}

	scored := make([]scoredColumn, 0, len(ranking.Candidates))
	for _, candidate := range ranking.Candidates {
		if candidate.Column == k.opts.ReferenceNode {
			continue
		}
		values, _ := window.Column(candidate.Column)
		scored = append(scored, scoredColumn{
			column: candidate.Column,
			score:  similarity(ksDistance(reference, values)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	for _, s := range scored {
		ranking.Causes = append(ranking.Causes, models.PotentialRootCause{
			Node:   s.column,
			Metric: in.TargetMetric,
			Score:  s.score,
		})
	}
	return ranking, nil
}

package engine

import (
	"fmt"

	"github.com/miradorstack/slo-ranker/internal/config"
	"github.com/miradorstack/slo-ranker/internal/preprocess"
)

// OptionsFromConfig converts the analysis section of the service configuration.
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	imputation, err := preprocess.ParseImputeMethod(cfg.Imputation)
	if err != nil {
		return Options{}, fmt.Errorf("analysis.imputation: %w", err)
	}
	hollowImputation, err := preprocess.ParseImputeMethod(cfg.Hollow.Imputation)
	if err != nil {
		return Options{}, fmt.Errorf("analysis.hollow.imputation: %w", err)
	}
	policy, err := NewChangePolicy(cfg.MetricPolicies)
	if err != nil {
		return Options{}, fmt.Errorf("analysis.metricPolicies: %w", err)
	}

	opts := Options{
		Kind:          cfg.Kind,
		ReferenceNode: cfg.ReferenceNode,
		WindowSize:    cfg.WindowSize,
		TopN:          cfg.TopN,
		Imputation:    imputation,
		Policy:        policy,
		Hollow: HollowOptions{
			TopK:       cfg.Hollow.TopK,
			Imputation: hollowImputation,
			Seed:       cfg.Hollow.Seed,
		},
	}
	return opts.withDefaults(), nil
}

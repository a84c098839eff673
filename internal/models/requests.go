package models

import (
	"time"

	"github.com/miradorstack/slo-ranker/internal/table"
)

// AnalysisInput is the argument set shared by every ranking implementation.
type AnalysisInput struct {
	Graph           ServiceGraph
	TargetNode      string
	TargetMetric    string
	TargetStatistic string
	// NormalMetrics and AbnormalMetrics are raw tables keyed by node::metric::statistic.
	NormalMetrics   *table.Table
	AbnormalMetrics *table.Table
}

// AnalysisRequest represents a ranking call received by the service.
type AnalysisRequest struct {
	TenantID string
	AnalysisInput
	// NormalWindow and AbnormalWindow are used to fetch tables that were not supplied inline.
	NormalWindow   TimeRange
	AbnormalWindow TimeRange
}

// TimeRange bounds the signal window for analysis.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// AnalysisResult summarises a ranking call.
type AnalysisResult struct {
	AnalysisID      string               `json:"analysis_id"`
	Analyzer        string               `json:"analyzer"`
	TargetNode      string               `json:"target_node"`
	TargetMetric    string               `json:"target_metric"`
	TargetStatistic string               `json:"target_statistic"`
	RootCauses      []PotentialRootCause `json:"root_causes"`
	Diagnostics     []Diagnostic         `json:"diagnostics,omitempty"`
	Cached          bool                 `json:"cached"`
	CreatedAt       time.Time            `json:"created_at"`
}

package models

// PotentialRootCause is a ranked root-cause candidate. Higher scores are more relevant.
type PotentialRootCause struct {
	Node   string  `json:"node"`
	Metric string  `json:"metric"`
	Score  float64 `json:"score"`
}

// DiagnosticKind enumerates the anticipated edge cases the ranking resolves locally.
type DiagnosticKind string

const (
	// DiagnosticAlignmentGap marks columns present in only one of the two tables.
	DiagnosticAlignmentGap DiagnosticKind = "alignment_gap"
	// DiagnosticReferenceMissing marks a ranking that stopped because the reference column was absent.
	DiagnosticReferenceMissing DiagnosticKind = "reference_missing"
	// DiagnosticDegenerateScale marks zero-variance columns scaled to a constant.
	DiagnosticDegenerateScale DiagnosticKind = "degenerate_scale"
	// DiagnosticDegenerateChange marks columns whose window starts at zero.
	DiagnosticDegenerateChange DiagnosticKind = "degenerate_change"
	// DiagnosticInsufficientWindow marks rankings computed over a short window.
	DiagnosticInsufficientWindow DiagnosticKind = "insufficient_window"
)

// Diagnostic is a human-readable note attached to a ranking. It never changes the ranking.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Columns []string       `json:"columns,omitempty"`
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/slo-ranker/internal/api"
	"github.com/miradorstack/slo-ranker/internal/cache"
	"github.com/miradorstack/slo-ranker/internal/engine"
	"github.com/miradorstack/slo-ranker/internal/grpc/rankerv1"
	"github.com/miradorstack/slo-ranker/internal/metrics"
	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/preprocess"
	"github.com/miradorstack/slo-ranker/internal/table"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

var (
	// ErrInvalidRequest marks requests that can never succeed as sent.
	ErrInvalidRequest = errors.New("invalid analysis request")
	// ErrUpstream marks failures fetching metrics from mirador-core.
	ErrUpstream = errors.New("metrics source unavailable")
)

// MetricsSource fetches raw metrics tables and service graphs for a time window.
type MetricsSource interface {
	FetchMetricsTable(ctx context.Context, tenantID string, start, end time.Time) (*table.Table, error)
	FetchServiceGraph(ctx context.Context, tenantID string, start, end time.Time) (models.ServiceGraph, error)
}

// fingerprinter is implemented by analyzers whose output depends on tunable options.
type fingerprinter interface {
	Fingerprint() string
}

// RankingService implements the RootCauseRanker gRPC service.
type RankingService struct {
	rankerv1.UnimplementedRootCauseRankerServer

	logger    *slog.Logger
	analyzer  engine.Analyzer
	source    MetricsSource
	cache     cache.Provider
	resultTTL time.Duration
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewRankingService constructs the ranking facade. source and cacheProvider may be nil: requests
// must then carry their tables inline and results are never cached.
func NewRankingService(logger *slog.Logger, analyzer engine.Analyzer, source MetricsSource, cacheProvider cache.Provider, resultTTL time.Duration) *RankingService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &RankingService{
		logger:    logger,
		analyzer:  analyzer,
		source:    source,
		cache:     cacheProvider,
		resultTTL: resultTTL,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Analyze decodes the wire request, ranks root causes and encodes the result.
func (s *RankingService) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.analyzer == nil {
		return nil, status.Error(codes.FailedPrecondition, "analyzer not configured")
	}

	domainReq, err := api.FromStructAnalysisRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debug("Analyze called",
		slog.String("tenant_id", domainReq.TenantID),
		slog.String("target_node", domainReq.TargetNode),
		slog.String("target_metric", domainReq.TargetMetric))

	result, err := s.RankRootCauses(ctx, domainReq)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := api.ToStructAnalysisResult(result)
	if err != nil {
		s.logger.Error("encode analysis result failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode analysis result")
	}
	return out, nil
}

// RankRootCauses resolves missing inputs, consults the result cache for deterministic
// analyzers and runs the analysis.
func (s *RankingService) RankRootCauses(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	kind := s.analyzer.Kind()
	start := s.now()

	result, err := s.rank(ctx, req)
	duration := s.now().Sub(start)
	if err != nil {
		metrics.ObserveAnalysis(kind, duration, metrics.OutcomeError)
		s.logger.Error("analysis failed", slog.String("analyzer", kind), slog.Any("error", err))
		return models.AnalysisResult{}, err
	}

	s.latencies.Observe(duration)
	metrics.ObserveAnalysis(kind, duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
	s.logger.Info("analysis completed",
		slog.String("analysis_id", result.AnalysisID),
		slog.String("analyzer", kind),
		slog.Int("root_causes", len(result.RootCauses)),
		slog.Int("diagnostics", len(result.Diagnostics)),
		slog.Bool("cached", result.Cached),
		slog.Duration("duration", duration))
	return result, nil
}

func (s *RankingService) rank(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if err := validate(req); err != nil {
		return models.AnalysisResult{}, err
	}
	if err := s.resolveInputs(ctx, &req); err != nil {
		return models.AnalysisResult{}, err
	}
	if missing := unmonitoredNodes(req.Graph, req.AbnormalMetrics); len(missing) > 0 {
		s.logger.Warn("service graph nodes without metrics",
			slog.String("tenant_id", req.TenantID),
			slog.Any("nodes", missing))
	}

	var key string
	if s.analyzer.Deterministic() {
		var err error
		if key, err = s.resultKey(req); err != nil {
			return models.AnalysisResult{}, err
		}
		if cached, ok := s.lookup(ctx, key); ok {
			return cached, nil
		}
	}

	ranking, err := s.analyzer.Rank(req.AnalysisInput)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	metrics.ObserveCandidates(len(ranking.Candidates))
	for _, d := range ranking.Diagnostics {
		metrics.IncDiagnostic(string(d.Kind))
	}

	result := models.AnalysisResult{
		AnalysisID:      uuid.NewString(),
		Analyzer:        s.analyzer.Kind(),
		TargetNode:      req.TargetNode,
		TargetMetric:    req.TargetMetric,
		TargetStatistic: req.TargetStatistic,
		RootCauses:      ranking.Causes,
		Diagnostics:     ranking.Diagnostics,
		CreatedAt:       s.now().UTC(),
	}
	if key != "" {
		s.store(ctx, key, result)
	}
	return result, nil
}

func validate(req models.AnalysisRequest) error {
	switch {
	case req.TargetNode == "":
		return fmt.Errorf("%w: target_node is required", ErrInvalidRequest)
	case req.TargetMetric == "":
		return fmt.Errorf("%w: target_metric is required", ErrInvalidRequest)
	case req.TargetStatistic == "":
		return fmt.Errorf("%w: target_statistic is required", ErrInvalidRequest)
	case req.NormalMetrics == nil && req.NormalWindow.IsZero():
		return fmt.Errorf("%w: normal_metrics or normal_window is required", ErrInvalidRequest)
	case req.AbnormalMetrics == nil && req.AbnormalWindow.IsZero():
		return fmt.Errorf("%w: abnormal_metrics or abnormal_window is required", ErrInvalidRequest)
	}
	return nil
}

// resolveInputs fetches the tables the request did not carry. A missing graph is fetched on a
// best-effort basis since the ranking does not depend on it.
func (s *RankingService) resolveInputs(ctx context.Context, req *models.AnalysisRequest) error {
	needsFetch := req.NormalMetrics == nil || req.AbnormalMetrics == nil
	if needsFetch && s.source == nil {
		return fmt.Errorf("%w: metrics tables must be supplied inline when no metrics source is configured", ErrInvalidRequest)
	}

	if req.NormalMetrics == nil {
		tbl, err := s.source.FetchMetricsTable(ctx, req.TenantID, req.NormalWindow.Start, req.NormalWindow.End)
		if err != nil {
			return fmt.Errorf("%w: normal window: %w", ErrUpstream, err)
		}
		req.NormalMetrics = tbl
	}
	if req.AbnormalMetrics == nil {
		tbl, err := s.source.FetchMetricsTable(ctx, req.TenantID, req.AbnormalWindow.Start, req.AbnormalWindow.End)
		if err != nil {
			return fmt.Errorf("%w: abnormal window: %w", ErrUpstream, err)
		}
		req.AbnormalMetrics = tbl
	}

	if len(req.Graph.Edges) == 0 && s.source != nil && !req.AbnormalWindow.IsZero() {
		graph, err := s.source.FetchServiceGraph(ctx, req.TenantID, req.AbnormalWindow.Start, req.AbnormalWindow.End)
		if err != nil {
			s.logger.Warn("service graph unavailable", slog.String("tenant_id", req.TenantID), slog.Any("error", err))
		} else {
			req.Graph = graph
		}
	}
	return nil
}

// unmonitoredNodes lists graph nodes that have no column in the raw metrics table.
func unmonitoredNodes(graph models.ServiceGraph, raw *table.Table) []string {
	if raw == nil {
		return nil
	}
	present := make(map[string]struct{})
	for _, node := range preprocess.Nodes(raw) {
		present[node] = struct{}{}
	}
	var missing []string
	for _, node := range graph.Nodes() {
		if _, ok := present[node]; !ok {
			missing = append(missing, node)
		}
	}
	return missing
}

// resultKey hashes everything that determines a deterministic ranking.
func (s *RankingService) resultKey(req models.AnalysisRequest) (string, error) {
	normal, err := json.Marshal(req.NormalMetrics)
	if err != nil {
		return "", fmt.Errorf("%w: normal_metrics: %v", ErrInvalidRequest, err)
	}
	abnormal, err := json.Marshal(req.AbnormalMetrics)
	if err != nil {
		return "", fmt.Errorf("%w: abnormal_metrics: %v", ErrInvalidRequest, err)
	}

	d := xxhash.New()
	for _, part := range []string{
		s.analyzer.Kind(),
		fingerprintOf(s.analyzer),
		req.TenantID,
		req.TargetNode,
		req.TargetMetric,
		req.TargetStatistic,
	} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.Write(normal)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(abnormal)
	return fmt.Sprintf("slo-ranker:result:%016x", d.Sum64()), nil
}

func fingerprintOf(a engine.Analyzer) string {
	if f, ok := a.(fingerprinter); ok {
		return f.Fingerprint()
	}
	return ""
}

func (s *RankingService) lookup(ctx context.Context, key string) (models.AnalysisResult, bool) {
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("result cache lookup failed", slog.Any("error", err))
		}
		metrics.ObserveCache(false)
		return models.AnalysisResult{}, false
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		s.logger.Warn("discarding undecodable cached result", slog.String("key", key), slog.Any("error", err))
		metrics.ObserveCache(false)
		return models.AnalysisResult{}, false
	}
	metrics.ObserveCache(true)
	result.Cached = true
	return result, true
}

func (s *RankingService) store(ctx context.Context, key string, result models.AnalysisResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encode result for cache failed", slog.Any("error", err))
		return
	}
	if _, err := s.cache.SetNX(ctx, key, payload, s.resultTTL); err != nil {
		s.logger.Warn("result cache store failed", slog.Any("error", err))
	}
}

// LatencyP95 returns the current p95 analysis latency.
func (s *RankingService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrUpstream):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, fmt.Sprintf("analysis failed: %v", err))
}

package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/table"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

type analysisRequestWire struct {
	TenantID        string              `json:"tenant_id"`
	TargetNode      string              `json:"target_node"`
	TargetMetric    string              `json:"target_metric"`
	TargetStatistic string              `json:"target_statistic"`
	Graph           models.ServiceGraph `json:"graph"`
	NormalMetrics   *table.Table        `json:"normal_metrics"`
	AbnormalMetrics *table.Table        `json:"abnormal_metrics"`
	NormalWindow    *timeRangeWire      `json:"normal_window"`
	AbnormalWindow  *timeRangeWire      `json:"abnormal_window"`
}

type timeRangeWire struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FromStructAnalysisRequest maps the wire document into a domain AnalysisRequest. Tables are
// decoded as given; whether they or the windows are required is decided by the service.
func FromStructAnalysisRequest(req *structpb.Struct) (models.AnalysisRequest, error) {
	if req == nil {
		return models.AnalysisRequest{}, fmt.Errorf("request is nil")
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("encode request: %w", err)
	}
	return DecodeAnalysisRequest(data)
}

// DecodeAnalysisRequest parses the JSON form of an analysis request.
func DecodeAnalysisRequest(data []byte) (models.AnalysisRequest, error) {
	var wire analysisRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("decode request: %w", err)
	}

	normalWindow, err := wire.NormalWindow.toDomain("normal_window")
	if err != nil {
		return models.AnalysisRequest{}, err
	}
	abnormalWindow, err := wire.AbnormalWindow.toDomain("abnormal_window")
	if err != nil {
		return models.AnalysisRequest{}, err
	}

	return models.AnalysisRequest{
		TenantID: strings.TrimSpace(wire.TenantID),
		AnalysisInput: models.AnalysisInput{
			Graph:           wire.Graph,
			TargetNode:      strings.TrimSpace(wire.TargetNode),
			TargetMetric:    strings.TrimSpace(wire.TargetMetric),
			TargetStatistic: strings.TrimSpace(wire.TargetStatistic),
			NormalMetrics:   wire.NormalMetrics,
			AbnormalMetrics: wire.AbnormalMetrics,
		},
		NormalWindow:   normalWindow,
		AbnormalWindow: abnormalWindow,
	}, nil
}

func (w *timeRangeWire) toDomain(field string) (models.TimeRange, error) {
	if w == nil || (w.Start == "" && w.End == "") {
		return models.TimeRange{}, nil
	}
	start, err := utils.ParseRFC3339(w.Start)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("%s.start: %w", field, err)
	}
	end, err := utils.ParseRFC3339(w.End)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("%s.end: %w", field, err)
	}
	if !end.After(start) {
		return models.TimeRange{}, fmt.Errorf("%s.end must be after %s.start", field, field)
	}
	return models.TimeRange{Start: start, End: end}, nil
}

// ToStructAnalysisResult converts a domain result into the wire document.
func ToStructAnalysisResult(res models.AnalysisResult) (*structpb.Struct, error) {
	if res.RootCauses == nil {
		res.RootCauses = []models.PotentialRootCause{}
	}
	res.CreatedAt = res.CreatedAt.UTC().Truncate(time.Millisecond)

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}

// ToStructAnalysisRequest builds the wire document for a request. Used by clients and tests.
func ToStructAnalysisRequest(req models.AnalysisRequest) (*structpb.Struct, error) {
	wire := analysisRequestWire{
		TenantID:        req.TenantID,
		TargetNode:      req.TargetNode,
		TargetMetric:    req.TargetMetric,
		TargetStatistic: req.TargetStatistic,
		Graph:           req.Graph,
		NormalMetrics:   req.NormalMetrics,
		AbnormalMetrics: req.AbnormalMetrics,
		NormalWindow:    fromDomainRange(req.NormalWindow),
		AbnormalWindow:  fromDomainRange(req.AbnormalWindow),
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return out, nil
}

// FromStructAnalysisResult decodes a wire result. Used by clients and tests.
func FromStructAnalysisResult(res *structpb.Struct) (models.AnalysisResult, error) {
	if res == nil {
		return models.AnalysisResult{}, fmt.Errorf("result is nil")
	}
	data, err := protojson.Marshal(res)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode result: %w", err)
	}
	var out models.AnalysisResult
	if err := json.Unmarshal(data, &out); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func fromDomainRange(r models.TimeRange) *timeRangeWire {
	if r.IsZero() {
		return nil
	}
	return &timeRangeWire{Start: r.Start.UTC().Format(time.RFC3339), End: r.End.UTC().Format(time.RFC3339)}
}

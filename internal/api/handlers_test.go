package api

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/table"
)

func TestDecodeAnalysisRequest(t *testing.T) {
	body := `{
		"tenant_id": "tenant-a",
		"target_node": " PetSite ",
		"target_metric": "latency",
		"target_statistic": "Average",
		"graph": {"edges": [{"source": "PetSite", "target": "ServiceA", "call_rate": 12.5}]},
		"normal_metrics": {"columns": ["PetSite::latency::Average"], "rows": [[1.0], [null]]},
		"abnormal_window": {"start": "2024-03-01T10:00:00Z", "end": "2024-03-01T10:15:00Z"}
	}`

	req, err := DecodeAnalysisRequest([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", req.TenantID)
	assert.Equal(t, "PetSite", req.TargetNode)
	assert.Equal(t, 12.5, req.Graph.Edges[0].CallRate)

	require.NotNil(t, req.NormalMetrics)
	values, _ := req.NormalMetrics.Column("PetSite::latency::Average")
	assert.Equal(t, 1.0, values[0])
	assert.True(t, math.IsNaN(values[1]))
	assert.Nil(t, req.AbnormalMetrics)

	assert.True(t, req.NormalWindow.IsZero())
	assert.Equal(t, 15*time.Minute, req.AbnormalWindow.End.Sub(req.AbnormalWindow.Start))
}

func TestDecodeAnalysisRequestRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"bad window":     `{"normal_window": {"start": "yesterday", "end": "2024-03-01T10:15:00Z"}}`,
		"reversed":       `{"normal_window": {"start": "2024-03-01T10:15:00Z", "end": "2024-03-01T10:00:00Z"}}`,
		"ragged table":   `{"normal_metrics": {"columns": ["a", "b"], "rows": [[1.0]]}}`,
		"not an object":  `[]`,
		"wrong typed id": `{"tenant_id": 4}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAnalysisRequest([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestAnalysisRequestStructRoundTrip(t *testing.T) {
	tbl, err := table.New([]string{"PetSite::latency::Average", "ServiceA::latency::Average"}, [][]float64{{1, 2}, {3, math.NaN()}})
	require.NoError(t, err)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	in := models.AnalysisRequest{
		TenantID: "tenant-a",
		AnalysisInput: models.AnalysisInput{
			TargetNode:      "PetSite",
			TargetMetric:    "latency",
			TargetStatistic: "Average",
			NormalMetrics:   tbl,
		},
		AbnormalWindow: models.TimeRange{Start: start, End: start.Add(time.Hour)},
	}

	msg, err := ToStructAnalysisRequest(in)
	require.NoError(t, err)
	assert.Equal(t, "PetSite", msg.GetFields()["target_node"].GetStringValue())
	_, isNull := msg.GetFields()["abnormal_metrics"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	out, err := FromStructAnalysisRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, in.TargetNode, out.TargetNode)
	assert.Equal(t, in.AbnormalWindow.Start, out.AbnormalWindow.Start)
	assert.Equal(t, tbl.Columns(), out.NormalMetrics.Columns())
	assert.Equal(t, tbl.NumRows(), out.NormalMetrics.NumRows())

	_, err = FromStructAnalysisRequest(nil)
	require.Error(t, err)
}

func TestToStructAnalysisResult(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	res := models.AnalysisResult{
		AnalysisID:      "a-1",
		Analyzer:        "kstest",
		TargetNode:      "PetSite",
		TargetMetric:    "latency",
		TargetStatistic: "Average",
		RootCauses:      []models.PotentialRootCause{{Node: "ServiceA", Metric: "latency", Score: 0.625}},
		Diagnostics: []models.Diagnostic{{
			Kind:    models.DiagnosticAlignmentGap,
			Message: "columns in normal metrics but missing in abnormal metrics",
			Columns: []string{"ServiceC"},
		}},
		CreatedAt: created,
	}

	msg, err := ToStructAnalysisResult(res)
	require.NoError(t, err)
	causes := msg.GetFields()["root_causes"].GetListValue().GetValues()
	require.Len(t, causes, 1)
	assert.Equal(t, 0.625, causes[0].GetStructValue().GetFields()["score"].GetNumberValue())

	decoded, err := FromStructAnalysisResult(msg)
	require.NoError(t, err)
	assert.Equal(t, res.RootCauses, decoded.RootCauses)
	assert.Equal(t, res.Diagnostics, decoded.Diagnostics)
	assert.Equal(t, created.Truncate(time.Millisecond), decoded.CreatedAt)

	empty, err := ToStructAnalysisResult(models.AnalysisResult{})
	require.NoError(t, err)
	assert.NotNil(t, empty.GetFields()["root_causes"].GetListValue())
}

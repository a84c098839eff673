package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/slo-ranker/internal/config"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func testCoreConfig() config.CoreClientConfig {
	cfg := config.Default().Clients.Core
	cfg.BaseURL = "https://core.example.com/"
	return cfg
}

func TestFetchMetricsTable(t *testing.T) {
	client := NewMiradorCoreClient(testCoreConfig(), nil, time.Minute, nil)
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/api/v1/slo/metrics-table", req.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "tenant-a", body["tenant_id"])
		assert.Equal(t, "2023-11-14T22:13:20Z", body["start"])

		return jsonResponse(t, http.StatusOK, map[string]any{
			"columns": []string{"PetSite::latency::Average", "ServiceA::latency::Average"},
			"rows":    [][]any{{1.0, 2.0}, {nil, 3.0}},
		}), nil
	}))

	start := time.Unix(1_700_000_000, 0)
	tbl, err := client.FetchMetricsTable(context.Background(), "tenant-a", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"PetSite::latency::Average", "ServiceA::latency::Average"}, tbl.Columns())
	assert.Equal(t, 2, tbl.NumRows())

	petsite, _ := tbl.Column("PetSite::latency::Average")
	assert.True(t, math.IsNaN(petsite[1]))
}

func TestFetchMetricsTableErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	_, err := NewMiradorCoreClient(config.CoreClientConfig{}, nil, 0, nil).FetchMetricsTable(ctx, "t", now, now)
	require.Error(t, err)

	client := NewMiradorCoreClient(testCoreConfig(), nil, 0, nil)
	client.httpClient = newTestClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusBadGateway, map[string]any{}), nil
	}))
	_, err = client.FetchMetricsTable(ctx, "t", now, now)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "repo.FetchMetricsTable", appErr.Op)

	client.httpClient = newTestClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"columns": []string{}, "rows": [][]float64{}}), nil
	}))
	_, err = client.FetchMetricsTable(ctx, "t", now, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestFetchServiceGraphCachesResults(t *testing.T) {
	hits := 0
	cacheStub := newStubCache()
	client := NewMiradorCoreClient(testCoreConfig(), cacheStub, time.Minute, nil)
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		assert.Equal(t, "/api/v1/rca/service-graph", req.URL.Path)
		return jsonResponse(t, http.StatusOK, map[string]any{
			"edges": []map[string]any{
				{"source": "PetSite", "target": "ServiceA", "call_rate": 42.0, "error_rate": 0.01},
			},
		}), nil
	}))

	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(5 * time.Minute)

	graph, err := client.FetchServiceGraph(ctx, "tenant-a", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "PetSite", graph.Edges[0].Source)

	cached, err := client.FetchServiceGraph(ctx, "tenant-a", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "cache hit must not call upstream")
	assert.Equal(t, graph, cached)

	_, err = client.FetchServiceGraph(ctx, "tenant-b", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestFetchServiceGraphRejectsEmptyGraph(t *testing.T) {
	client := NewMiradorCoreClient(testCoreConfig(), newStubCache(), time.Minute, nil)
	client.httpClient = newTestClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"edges": []any{}}), nil
	}))
	_, err := client.FetchServiceGraph(context.Background(), "t", time.Now(), time.Now())
	require.Error(t, err)
}

package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/slo-ranker/internal/cache"
	"github.com/miradorstack/slo-ranker/internal/config"
	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/table"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

// MiradorCoreClient fetches raw metrics tables and service graphs from mirador-core.
type MiradorCoreClient struct {
	baseURL          string
	metricsTablePath string
	serviceGraphPath string
	httpClient       *http.Client

	cache    cache.Provider
	graphTTL time.Duration
	logger   *slog.Logger
}

// NewMiradorCoreClient constructs a client targeting the configured mirador-core instance.
// Service graphs are cached in cacheProvider for graphTTL; a nil provider disables caching.
func NewMiradorCoreClient(cfg config.CoreClientConfig, cacheProvider cache.Provider, graphTTL time.Duration, logger *slog.Logger) *MiradorCoreClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MiradorCoreClient{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		metricsTablePath: cfg.MetricsTablePath,
		serviceGraphPath: cfg.ServiceGraphPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:    cacheProvider,
		graphTTL: graphTTL,
		logger:   logger,
	}
}

// FetchMetricsTable returns the raw node::metric::statistic table for one time window.
func (c *MiradorCoreClient) FetchMetricsTable(ctx context.Context, tenantID string, start, end time.Time) (*table.Table, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var response table.Table
	if err := c.postJSON(ctx, c.metricsTableURL(), windowPayload(tenantID, start, end), &response); err != nil {
		return nil, utils.NewAppError("repo.FetchMetricsTable", "mirador-core metrics table request failed", err)
	}
	if response.NumColumns() == 0 || response.NumRows() == 0 {
		return nil, utils.NewAppError("repo.FetchMetricsTable", "mirador-core metrics table is empty", nil)
	}
	return &response, nil
}

// FetchServiceGraph retrieves service dependency edges derived from servicegraph metrics.
func (c *MiradorCoreClient) FetchServiceGraph(ctx context.Context, tenantID string, start, end time.Time) (models.ServiceGraph, error) {
	if err := c.ready(); err != nil {
		return models.ServiceGraph{}, err
	}

	key := serviceGraphCacheKey(tenantID, start, end)
	if payload, err := c.cache.Get(ctx, key); err == nil {
		var graph models.ServiceGraph
		if err := json.Unmarshal(payload, &graph); err == nil {
			return graph, nil
		}
		c.logger.Debug("discarding undecodable cached service graph", slog.String("key", key))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("service graph cache lookup failed", slog.Any("error", err))
	}

	var graph models.ServiceGraph
	if err := c.postJSON(ctx, c.serviceGraphURL(), windowPayload(tenantID, start, end), &graph); err != nil {
		return models.ServiceGraph{}, utils.NewAppError("repo.FetchServiceGraph", "mirador-core service graph request failed", err)
	}
	if len(graph.Edges) == 0 {
		return models.ServiceGraph{}, utils.NewAppError("repo.FetchServiceGraph", "mirador-core service graph returned no edges", nil)
	}

	if payload, err := json.Marshal(graph); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.graphTTL); err != nil {
			c.logger.Warn("service graph cache store failed", slog.Any("error", err))
		}
	}
	return graph, nil
}

func (c *MiradorCoreClient) ready() error {
	if c == nil {
		return fmt.Errorf("mirador-core client not initialised")
	}
	if c.baseURL == "" {
		return fmt.Errorf("mirador-core base URL not configured")
	}
	return nil
}

func windowPayload(tenantID string, start, end time.Time) map[string]any {
	return map[string]any{
		"tenant_id": tenantID,
		"start":     start.UTC().Format(time.RFC3339),
		"end":       end.UTC().Format(time.RFC3339),
	}
}

func serviceGraphCacheKey(tenantID string, start, end time.Time) string {
	return fmt.Sprintf("slo-ranker:graph:%s:%d:%d", tenantID, start.Unix(), end.Unix())
}

func (c *MiradorCoreClient) metricsTableURL() string { return c.resolvePath(c.metricsTablePath) }
func (c *MiradorCoreClient) serviceGraphURL() string { return c.resolvePath(c.serviceGraphPath) }

func (c *MiradorCoreClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *MiradorCoreClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirador-core returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

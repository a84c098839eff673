package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendNoop   = "noop"
	CacheBackendMemory = "memory"
	CacheBackendValkey = "valkey"
)

// Config captures the settings required to boot the ranking service and CLI.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Clients  ClientsConfig  `yaml:"clients"`
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups upstream integrations.
type ClientsConfig struct {
	Core CoreClientConfig `yaml:"core"`
}

// CoreClientConfig configures access to the mirador-core metrics APIs.
type CoreClientConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	MetricsTablePath string        `yaml:"metricsTablePath"`
	ServiceGraphPath string        `yaml:"serviceGraphPath"`
	Timeout          time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AnalysisConfig selects and tunes the ranking analyzer.
type AnalysisConfig struct {
	Kind          string `yaml:"kind"`
	ReferenceNode string `yaml:"referenceNode"`
	WindowSize    int    `yaml:"windowSize"`
	TopN          int    `yaml:"topN"`
	Imputation    string `yaml:"imputation"`
	// MetricPolicies maps a metric name to higher_is_worse or lower_is_worse. Metric names
	// match case-insensitively, so "Availability" and "availability" share one entry.
	MetricPolicies map[string]string `yaml:"metricPolicies"`
	Hollow         HollowConfig      `yaml:"hollow"`
}

// HollowConfig tunes the random-score analyzer.
type HollowConfig struct {
	TopK       int    `yaml:"topK"`
	Imputation string `yaml:"imputation"`
	Seed       uint64 `yaml:"seed"`
}

// CacheConfig controls caching of service graphs and analysis results.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	Addr            string        `yaml:"addr"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	MaxRetries      int           `yaml:"maxRetries"`
	TLS             bool          `yaml:"tls"`
	MemorySize      int           `yaml:"memorySize"`
	ResultTTL       time.Duration `yaml:"resultTTL"`
	ServiceGraphTTL time.Duration `yaml:"serviceGraphTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SLO_RANKER_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Core: CoreClientConfig{
				MetricsTablePath: "/api/v1/slo/metrics-table",
				ServiceGraphPath: "/api/v1/rca/service-graph",
				Timeout:          5 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Analysis: AnalysisConfig{
			Kind:          "kstest",
			ReferenceNode: "PetSite",
			WindowSize:    5,
			TopN:          10,
			Imputation:    "none",
			Hollow: HollowConfig{
				TopK:       3,
				Imputation: "mean",
			},
		},
		Cache: CacheConfig{
			Backend:         CacheBackendNoop,
			DialTimeout:     2 * time.Second,
			ReadTimeout:     500 * time.Millisecond,
			WriteTimeout:    500 * time.Millisecond,
			MaxRetries:      2,
			MemorySize:      1024,
			ResultTTL:       10 * time.Minute,
			ServiceGraphTTL: 5 * time.Minute,
		},
	}
}

// Validate rejects settings that cannot boot.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendNoop, CacheBackendMemory:
	case CacheBackendValkey:
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the %s backend", CacheBackendValkey)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Analysis.WindowSize < 0 || c.Analysis.TopN < 0 || c.Analysis.Hollow.TopK < 0 {
		return errors.New("analysis sizes must not be negative")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLO_RANKER_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SLO_RANKER_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_CORE_BASE_URL"); v != "" {
		cfg.Clients.Core.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_CORE_METRICS_TABLE_PATH"); v != "" {
		cfg.Clients.Core.MetricsTablePath = v
	}
	if v := os.Getenv("MIRADOR_CORE_SERVICE_GRAPH_PATH"); v != "" {
		cfg.Clients.Core.ServiceGraphPath = v
	}
	if v := os.Getenv("SLO_RANKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLO_RANKER_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SLO_RANKER_ANALYZER"); v != "" {
		cfg.Analysis.Kind = v
	}
	if v := os.Getenv("SLO_RANKER_REFERENCE_NODE"); v != "" {
		cfg.Analysis.ReferenceNode = v
	}
	if v := os.Getenv("SLO_RANKER_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.WindowSize = n
		}
	}
	if v := os.Getenv("SLO_RANKER_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.TopN = n
		}
	}
	if v := os.Getenv("SLO_RANKER_IMPUTATION"); v != "" {
		cfg.Analysis.Imputation = v
	}
	if v := os.Getenv("SLO_RANKER_HOLLOW_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Analysis.Hollow.Seed = seed
		}
	}
	if v := os.Getenv("SLO_RANKER_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SLO_RANKER_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SLO_RANKER_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SLO_RANKER_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SLO_RANKER_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SLO_RANKER_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("SLO_RANKER_CACHE_MEMORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MemorySize = n
		}
	}
	if v := os.Getenv("SLO_RANKER_CACHE_RESULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ResultTTL = d
		}
	}
	if v := os.Getenv("SLO_RANKER_CACHE_SERVICE_GRAPH_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ServiceGraphTTL = d
		}
	}
}

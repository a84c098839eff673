package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/miradorstack/slo-ranker/internal/config"
)

// Provider defines the minimal cache operations needed by the service.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider implements Provider but never stores data.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX pretends to store the value and reports success.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Del is a no-op for the noop cache.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }

// FromConfig builds the configured backend. An unreachable Valkey server degrades to the
// noop provider with a warning so the service can still rank without caching.
func FromConfig(cfg config.CacheConfig, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.CacheBackendMemory:
		maxTTL := cfg.ResultTTL
		if cfg.ServiceGraphTTL > maxTTL {
			maxTTL = cfg.ServiceGraphTTL
		}
		return NewMemoryProvider(cfg.MemorySize, maxTTL)
	case config.CacheBackendValkey:
		provider, err := NewValkeyProvider(ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
			return NoopProvider{}
		}
		return provider
	}
	return NoopProvider{}
}

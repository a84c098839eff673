package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds the in-process cache when no size is configured.
const DefaultMemorySize = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryProvider implements Provider with a bounded in-process LRU. Entries expire after the
// TTL passed to Set, capped by the maxTTL given at construction.
type MemoryProvider struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryProvider builds an LRU holding at most size entries. maxTTL <= 0 disables the cap.
func NewMemoryProvider(size int, maxTTL time.Duration) *MemoryProvider {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if maxTTL < 0 {
		maxTTL = 0
	}
	return &MemoryProvider{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get returns a copy of the stored bytes or ErrCacheMiss.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.store(key, value, ttl)
	return nil
}

// SetNX stores value only when key is absent or expired.
func (p *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lookup(key); ok {
		return false, nil
	}
	p.store(key, value, ttl)
	return true, nil
}

// Del removes key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lru.Remove(key)
	return nil
}

// Close drops every entry.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}

func (p *MemoryProvider) lookup(key string) (memoryEntry, bool) {
	entry, ok := p.lru.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !p.now().Before(entry.expiresAt) {
		p.lru.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (p *MemoryProvider) store(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = p.now().Add(ttl)
	}
	p.lru.Add(key, entry)
}

// Package cache holds the small persistent key/value state of the explorer:
// the last recent-items page and the onboarding flag.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fc_explorer/core-go/internal/metrics"
)

const (
	// RecentItemsKey stores the first page of recent collectibles.
	RecentItemsKey = "fc-explorer-recent-items"
	// OnboardingKey stores whether the onboarding overlay was dismissed.
	OnboardingKey = "fc-explorer-onboarding-seen"

	DefaultTTL = 5 * time.Minute
)

// Entry is a stored value plus the time it was written.
type Entry struct {
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"writtenAt"`
}

// Backend is a key/value store. A missing key is (Entry{}, false, nil).
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
}

// Memory is a process-local Backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	e.Data = append([]byte(nil), e.Data...)
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Data = append([]byte(nil), e.Data...)
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// TTL layers JSON encoding and a freshness window over a Backend. Entries
// are never expired from the backend so stale data stays available as a
// fallback.
type TTL struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTTL(backend Backend, ttl time.Duration, m *metrics.Metrics) *TTL {
	if backend == nil {
		backend = NewMemory()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL{backend: backend, ttl: ttl, metrics: m, now: time.Now}
}

// Backend returns the underlying store.
func (c *TTL) Backend() Backend { return c.backend }

// Fresh decodes key into dst when it was written less than ttl ago.
func (c *TTL) Fresh(ctx context.Context, key string, dst any) bool {
	e, ok := c.load(ctx, key)
	if !ok {
		c.metrics.ObserveCacheLookup("miss")
		return false
	}
	if c.now().Sub(e.WrittenAt) >= c.ttl {
		c.metrics.ObserveCacheLookup("expired")
		return false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		c.metrics.ObserveCacheLookup("corrupt")
		return false
	}
	c.metrics.ObserveCacheLookup("hit")
	return true
}

// Stale decodes key into dst regardless of age.
func (c *TTL) Stale(ctx context.Context, key string, dst any) bool {
	e, ok := c.load(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return false
	}
	c.metrics.ObserveCacheLookup("stale")
	return true
}

func (c *TTL) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.backend.Set(ctx, key, Entry{Data: data, WrittenAt: c.now()})
}

func (c *TTL) load(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false
	}
	return e, true
}

// ErrCorrupt marks a stored value that cannot be decoded.
var ErrCorrupt = errors.New("cache entry corrupt")

// Flag reads a boolean stored under key. Missing, unreadable and corrupt
// values all read as false.
func Flag(ctx context.Context, b Backend, key string) bool {
	v, err := readFlag(ctx, b, key)
	return err == nil && v
}

func readFlag(ctx context.Context, b Backend, key string) (bool, error) {
	e, ok, err := b.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var v bool
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return false, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return v, nil
}

// SetFlag stores a boolean under key.
func SetFlag(ctx context.Context, b Backend, key string, v bool) error {
	data, _ := json.Marshal(v)
	return b.Set(ctx, key, Entry{Data: data, WrittenAt: time.Now()})
}

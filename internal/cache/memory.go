package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-memory TTLCache implementation using otter.
type Memory[T any] struct {
	cache   *otter.Cache[string, T]
	counter *stats.Counter
}

// NewMemory creates an in-memory cache whose entries live for ttl after each
// write, holding at most maxSize entries.
func NewMemory[T any](ttl time.Duration, maxSize int) (*Memory[T], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxSize)
	}

	counter := stats.NewCounter()
	c, err := otter.New(&otter.Options[string, T]{
		MaximumSize:      maxSize,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryWriting[string, T](ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create otter cache: %w", err)
	}

	return &Memory[T]{
		cache:   c,
		counter: counter,
	}, nil
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, bool, error) {
	value, ok := m.cache.GetIfPresent(key)
	return value, ok, nil
}

func (m *Memory[T]) Set(_ context.Context, key string, value T) error {
	m.cache.Set(key, value)
	return nil
}

func (m *Memory[T]) Invalidate(_ context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Close drops all entries.
func (m *Memory[T]) Close() error {
	m.cache.InvalidateAll()
	return nil
}

// Stats returns the hit and miss counts recorded since creation.
func (m *Memory[T]) Stats() (hits, misses uint64) {
	snapshot := m.counter.Snapshot()
	return snapshot.Hits, snapshot.Misses
}

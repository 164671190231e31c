package store

import (
	"context"
	"sync"
)

const (
	BucketAlerts    = "alerts"
	BucketWatchlist = "watchlist"
)

// Backend is the durable medium behind the stores. Save replaces the whole bucket.
type Backend interface {
	Load(ctx context.Context, bucket string) (map[string][]byte, error)
	Save(ctx context.Context, bucket string, records map[string][]byte) error
	Close() error
}

// MemoryBackend keeps buckets in process memory
type MemoryBackend struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	saves   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context, bucket string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.buckets[bucket]))
	for k, v := range m.buckets[bucket] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, bucket string, records map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := make(map[string][]byte, len(records))
	for k, v := range records {
		b[k] = append([]byte(nil), v...)
	}
	m.buckets[bucket] = b
	m.saves++
	return nil
}

// Saves returns how many times Save was called
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryBackend) Close() error {
	return nil
}

func recordKey(owner, id string) string {
	return owner + "/" + id
}

package store

import (
	"context"
	"strings"
	"sync"
)

// Mem is an in-memory KV with an optional byte quota. Tests use it
// directly; it also backs quota-fallback tests since the limit is exact
// and deterministic.
type Mem struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int64
	quota int64
}

// NewMem creates an unbounded in-memory store.
func NewMem() *Mem {
	return &Mem{data: map[string][]byte{}}
}

// NewMemWithQuota creates a store that rejects writes once the total stored
// bytes would exceed quota.
func NewMemWithQuota(quota int64) *Mem {
	return &Mem{data: map[string][]byte{}, quota: quota}
}

func (m *Mem) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Mem) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used - int64(len(m.data[key])) + int64(len(value))
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.used = next
	return nil
}

func (m *Mem) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		m.used -= int64(len(v))
		delete(m.data, key)
	}
	return nil
}

func (m *Mem) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Mem) Close() error { return nil }

// Used reports the currently stored byte total.
func (m *Mem) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

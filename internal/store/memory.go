package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, site, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[site][name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(_ context.Context, site, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[site] == nil {
		m.records[site] = make(map[string][]byte)
	}
	m.records[site][name] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, site string, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.records[site], name)
	}
	if len(m.records[site]) == 0 {
		delete(m.records, site)
	}
	return nil
}

func (m *Memory) Sites(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sites := make([]string, 0, len(m.records))
	for site := range m.records {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites, nil
}

func (m *Memory) Close() error { return nil }

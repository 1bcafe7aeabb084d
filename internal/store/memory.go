package store

import (
	"context"
	"sync"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Memory keeps results in process memory, keyed by source id. Later saves
// for the same source replace earlier ones, mirroring the upsert semantics
// of the Postgres store.
type Memory struct {
	mu      sync.Mutex
	results map[string]pipeline.PackageResult
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{results: make(map[string]pipeline.PackageResult)}
}

// SaveResult upserts the result by source id.
func (m *Memory) SaveResult(_ context.Context, result pipeline.PackageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.SourceID] = result
	return nil
}

// Get returns the stored result for a source id.
func (m *Memory) Get(sourceID string) (pipeline.PackageResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[sourceID]
	return result, ok
}

// Len returns the number of stored results.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// Close implements pipeline.ResultStore.
func (m *Memory) Close() error {
	return nil
}

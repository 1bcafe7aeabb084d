package publisher

import (
	"context"
	"sync"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Memory collects published results in order. Primarily for testing and
// local runs without a broker.
type Memory struct {
	mu      sync.Mutex
	results []pipeline.PackageResult
}

// NewMemory builds an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish appends the result.
func (m *Memory) Publish(_ context.Context, result pipeline.PackageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

// Published returns a copy of everything published so far.
func (m *Memory) Published() []pipeline.PackageResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.PackageResult(nil), m.results...)
}

// Close implements pipeline.Publisher.
func (m *Memory) Close() error {
	return nil
}

package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
)

// MockQueryGenerator is a test double for ai.QueryGenerator.
type MockQueryGenerator struct {
	// Queries is returned by default.
	Queries []string

	// Usage is reported with the default response.
	Usage core.Usage

	// GenerateQueriesFunc overrides the default behavior if set.
	GenerateQueriesFunc func(ctx context.Context, userQuery string) (*ai.GeneratedQueries, error)

	callCount atomic.Int64
}

// NewMockQueryGenerator returns a generator that always yields queries.
func NewMockQueryGenerator(queries ...string) *MockQueryGenerator {
	return &MockQueryGenerator{Queries: queries}
}

// GenerateQueries returns the configured queries.
func (m *MockQueryGenerator) GenerateQueries(ctx context.Context, userQuery string) (*ai.GeneratedQueries, error) {
	m.callCount.Add(1)

	if m.GenerateQueriesFunc != nil {
		return m.GenerateQueriesFunc(ctx, userQuery)
	}

	justifications := make([]string, len(m.Queries))
	for i := range justifications {
		justifications[i] = "scripted"
	}
	return &ai.GeneratedQueries{
		Queries:        append([]string(nil), m.Queries...),
		Justifications: justifications,
		Usage:          m.Usage,
	}, nil
}

// CallCount returns the number of GenerateQueries calls.
func (m *MockQueryGenerator) CallCount() int {
	return int(m.callCount.Load())
}

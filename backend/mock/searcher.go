package mock

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/ragflow/backend"
)

// MockSearcher is a test double for backend.Searcher.
type MockSearcher struct {
	// Results maps a query to its hits. Unknown queries return no hits.
	Results map[string][]backend.SearchHit

	// Errors maps a query to the error it fails with.
	Errors map[string]error

	// Delay is applied to every search before answering.
	Delay time.Duration

	SearchFunc func(ctx context.Context, query string) ([]backend.SearchHit, error)

	mu      sync.Mutex
	queries []string
}

func NewMockSearcher() *MockSearcher {
	return &MockSearcher{
		Results: make(map[string][]backend.SearchHit),
		Errors:  make(map[string]error),
	}
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]backend.SearchHit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	if err := sleep(ctx, m.Delay); err != nil {
		return nil, err
	}
	if err := m.Errors[query]; err != nil {
		return nil, err
	}
	return m.Results[query], nil
}

// Queries returns the queries searched so far, in call order.
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *MockSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// MockVectorSearcher is a test double for backend.VectorSearcher.
type MockVectorSearcher struct {
	Hits  []backend.VectorHit
	Err   error
	Delay time.Duration

	VectorSearchFunc func(ctx context.Context, query string) ([]backend.VectorHit, error)

	mu    sync.Mutex
	calls int
}

func NewMockVectorSearcher(hits ...backend.VectorHit) *MockVectorSearcher {
	return &MockVectorSearcher{Hits: hits}
}

func (m *MockVectorSearcher) VectorSearch(ctx context.Context, query string) ([]backend.VectorHit, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.VectorSearchFunc != nil {
		return m.VectorSearchFunc(ctx, query)
	}
	if err := sleep(ctx, m.Delay); err != nil {
		return nil, err
	}
	return m.Hits, m.Err
}

func (m *MockVectorSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

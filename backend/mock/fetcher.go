package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/ragflow/backend"
)

// MockFetcher is a test double for backend.DocumentFetcher. Ids missing from
// Bodies fail with backend.ErrDocumentNotFound.
type MockFetcher struct {
	Bodies map[string]string

	FetchFunc func(ctx context.Context, id, title string) (string, error)

	mu     sync.Mutex
	counts map[string]int
	total  int
}

func NewMockFetcher(bodies map[string]string) *MockFetcher {
	if bodies == nil {
		bodies = make(map[string]string)
	}
	return &MockFetcher{Bodies: bodies, counts: make(map[string]int)}
}

func (m *MockFetcher) FetchDocument(ctx context.Context, id, title string) (string, error) {
	m.mu.Lock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[id]++
	m.total++
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, id, title)
	}
	body, ok := m.Bodies[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", backend.ErrDocumentNotFound, id)
	}
	return body, nil
}

// FetchCount returns how often id was fetched.
func (m *MockFetcher) FetchCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

// CallCount returns the total number of fetches.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/ragflow/ai"
)

// MockAnswerSynthesizer is a test double for ai.AnswerSynthesizer.
// By default it answers with the titles of every page it was given.
type MockAnswerSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, req ai.SynthesisRequest) (*ai.Answer, error)

	mu       sync.Mutex
	requests []ai.SynthesisRequest
}

// NewMockAnswerSynthesizer creates a synthesizer with default behavior.
func NewMockAnswerSynthesizer() *MockAnswerSynthesizer {
	return &MockAnswerSynthesizer{}
}

// Synthesize records the request and returns an answer.
func (m *MockAnswerSynthesizer) Synthesize(ctx context.Context, req ai.SynthesisRequest) (*ai.Answer, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}

	titles := make([]string, 0, len(req.Pages)+len(req.VectorCandidates))
	for _, p := range req.Pages {
		titles = append(titles, p.Title)
	}
	for _, c := range req.VectorCandidates {
		titles = append(titles, c.Title)
	}
	return &ai.Answer{Text: "answer from: " + strings.Join(titles, ", ")}, nil
}

// CallCount returns the number of Synthesize calls.
func (m *MockAnswerSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or false if there was none.
func (m *MockAnswerSynthesizer) LastRequest() (ai.SynthesisRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.SynthesisRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/ragflow/ai"
)

// ErrScriptExhausted is returned when a scripted judge runs out of responses.
var ErrScriptExhausted = errors.New("mock judge: script exhausted")

// MockRelevanceJudge is a test double for ai.RelevanceJudge.
// It replays Script one entry per call unless JudgeFunc is set.
type MockRelevanceJudge struct {
	Script    []*ai.Judgment
	JudgeFunc func(ctx context.Context, req ai.JudgmentRequest) (*ai.Judgment, error)

	mu       sync.Mutex
	requests []ai.JudgmentRequest
}

// NewMockRelevanceJudge returns a judge replaying the given responses in order.
func NewMockRelevanceJudge(script ...*ai.Judgment) *MockRelevanceJudge {
	return &MockRelevanceJudge{Script: script}
}

// Judge records the request and returns the next scripted response.
func (m *MockRelevanceJudge) Judge(ctx context.Context, req ai.JudgmentRequest) (*ai.Judgment, error) {
	m.mu.Lock()
	call := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.JudgeFunc != nil {
		return m.JudgeFunc(ctx, req)
	}
	if call >= len(m.Script) {
		return nil, ErrScriptExhausted
	}
	return m.Script[call], nil
}

// CallCount returns the number of Judge calls.
func (m *MockRelevanceJudge) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received, in call order.
func (m *MockRelevanceJudge) Requests() []ai.JudgmentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.JudgmentRequest(nil), m.requests...)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import (
	"context"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
)

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock service instances.
type MockProvider struct {
	embedder    *MockEmbedder
	generator   *MockQueryGenerator
	judge       *MockRelevanceJudge
	synthesizer *MockAnswerSynthesizer
}

// NewMockProvider creates a new mock provider with default mock services.
// The default judge decides "[]" on every call.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use the GetMock* accessors to reach concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	judge := NewMockRelevanceJudge()
	judge.JudgeFunc = func(_ context.Context, _ ai.JudgmentRequest) (*ai.Judgment, error) {
		return ai.DecisionJudgment("[]", core.Usage{}), nil
	}
	return &MockProvider{
		embedder:    NewMockEmbedder(),
		generator:   NewMockQueryGenerator(),
		judge:       judge,
		synthesizer: NewMockAnswerSynthesizer(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(embedder *MockEmbedder, generator *MockQueryGenerator,
	judge *MockRelevanceJudge, synthesizer *MockAnswerSynthesizer) ai.AIProvider {
	return &MockProvider{
		embedder:    embedder,
		generator:   generator,
		judge:       judge,
		synthesizer: synthesizer,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// QueryGenerator returns the mock query generator.
func (p *MockProvider) QueryGenerator() ai.QueryGenerator {
	return p.generator
}

// RelevanceJudge returns the mock judge.
func (p *MockProvider) RelevanceJudge() ai.RelevanceJudge {
	return p.judge
}

// AnswerSynthesizer returns the mock synthesizer.
func (p *MockProvider) AnswerSynthesizer() ai.AnswerSynthesizer {
	return p.synthesizer
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockQueryGenerator returns the underlying mock query generator.
func (p *MockProvider) GetMockQueryGenerator() *MockQueryGenerator {
	return p.generator
}

// GetMockJudge returns the underlying mock judge.
func (p *MockProvider) GetMockJudge() *MockRelevanceJudge {
	return p.judge
}

// GetMockSynthesizer returns the underlying mock synthesizer.
func (p *MockProvider) GetMockSynthesizer() *MockAnswerSynthesizer {
	return p.synthesizer
}

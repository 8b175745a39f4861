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

package openai

import (
	"log/slog"

	"github.com/poiesic/ragflow/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// Query generation, judgment and synthesis share one chat client and select
// their model per call.
type Provider struct {
	config      *ai.Config
	embedder    *Embedder
	generator   *QueryGenerator
	judge       *RelevanceJudge
	synthesizer *AnswerSynthesizer
	logger      *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	chat, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.QueryModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	return newProvider(config, chat, embedder), nil
}

func newProvider(config *ai.Config, chat llms.Model, embedder *Embedder) *Provider {
	return &Provider{
		config:      config,
		embedder:    embedder,
		generator:   newQueryGenerator(chat, config),
		judge:       newRelevanceJudge(chat, config),
		synthesizer: newAnswerSynthesizer(chat, config),
		logger:      slog.Default().With("component", "openai-provider"),
	}
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// QueryGenerator returns the query generation service.
func (p *Provider) QueryGenerator() ai.QueryGenerator {
	return p.generator
}

// RelevanceJudge returns the relevance judgment service.
func (p *Provider) RelevanceJudge() ai.RelevanceJudge {
	return p.judge
}

// AnswerSynthesizer returns the answer synthesis service.
func (p *Provider) AnswerSynthesizer() ai.AnswerSynthesizer {
	return p.synthesizer
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}

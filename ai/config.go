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

package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// ChatHost is the base URL for the chat completion API used for query
	// generation, relevance judgment and synthesis.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ChatHost string

	// EmbeddingHost is the base URL for the embedding service API.
	EmbeddingHost string

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string

	// QueryModel generates search queries.
	QueryModel string

	// JudgeModel filters candidates; it must support tool calling.
	JudgeModel string

	// SynthesisModel writes the final answer.
	SynthesisModel string

	// EmbeddingModel is the model identifier to use for text embeddings.
	EmbeddingModel string

	// MaxQueries caps how many generated queries are kept. Default: 5
	MaxQueries int

	// InputCostPerMillion and OutputCostPerMillion price token usage.
	// Zero disables cost accounting.
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets both chat and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat completion host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithQueryModel sets the query generation model.
func WithQueryModel(model string) ConfigOption {
	return func(c *Config) {
		c.QueryModel = model
	}
}

// WithJudgeModel sets the relevance judgment model.
func WithJudgeModel(model string) ConfigOption {
	return func(c *Config) {
		c.JudgeModel = model
	}
}

// WithSynthesisModel sets the answer synthesis model.
func WithSynthesisModel(model string) ConfigOption {
	return func(c *Config) {
		c.SynthesisModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithMaxQueries caps the number of generated queries.
func WithMaxQueries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxQueries = n
	}
}

// WithPricing sets per-million-token prices used for cost accounting.
func WithPricing(inputPerMillion, outputPerMillion float64) ConfigOption {
	return func(c *Config) {
		c.InputCostPerMillion = inputPerMillion
		c.OutputCostPerMillion = outputPerMillion
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible gateway.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		ChatHost:       defaultHost,
		EmbeddingHost:  defaultHost,
		APIKey:         "none",
		QueryModel:     "gemini-2.5-flash",
		JudgeModel:     "gemini-2.5-pro",
		SynthesisModel: "gemini-2.5-flash",
		EmbeddingModel: "embeddinggemma",
		MaxQueries:     5,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithJudgeModel("gpt-4o"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.ChatHost = normalizeHost(c.ChatHost)
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.QueryModel == "" {
		return errors.New("ai config: QueryModel is required")
	}
	if c.JudgeModel == "" {
		return errors.New("ai config: JudgeModel is required")
	}
	if c.SynthesisModel == "" {
		return errors.New("ai config: SynthesisModel is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.MaxQueries < 1 {
		return errors.New("ai config: MaxQueries must be at least 1")
	}
	if c.InputCostPerMillion < 0 || c.OutputCostPerMillion < 0 {
		return errors.New("ai config: pricing cannot be negative")
	}
	return nil
}

// Cost prices a token count under this configuration.
func (c *Config) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputCostPerMillion + float64(outputTokens)*c.OutputCostPerMillion) / 1_000_000
}

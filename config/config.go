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

// Package config loads ragflow settings from ragflow.yml and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/retrieval"
	"gopkg.in/yaml.v3"
)

// FileNames are the config file names Load looks for, in order.
var FileNames = []string{"ragflow.yml", "ragflow.yaml"}

// Environment variables that override file settings.
const (
	EnvAPIKey        = "OPENAI_API_KEY"
	EnvBaseURL       = "OPENAI_BASE_URL"
	EnvConfluenceMCP = "CONFLUENCE_MCP_URL"
	EnvDataDir       = "RAGFLOW_DATA_DIR"
	EnvLogLevel      = "RAGFLOW_LOG_LEVEL"
)

// Config holds all ragflow settings.
type Config struct {
	// DataDir is the badger directory of the local document store. Empty
	// keeps the store in memory.
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	AI         AIConfig         `yaml:"ai"`
	Confluence ConfluenceConfig `yaml:"confluence"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Server     ServerConfig     `yaml:"server"`
}

// AIConfig selects the model endpoints and models.
type AIConfig struct {
	// Host sets both ChatHost and EmbeddingHost when they are empty.
	Host           string  `yaml:"host,omitempty"`
	ChatHost       string  `yaml:"chatHost,omitempty"`
	EmbeddingHost  string  `yaml:"embeddingHost,omitempty"`
	APIKey         string  `yaml:"apiKey,omitempty"`
	QueryModel     string  `yaml:"queryModel,omitempty"`
	JudgeModel     string  `yaml:"judgeModel,omitempty"`
	SynthesisModel string  `yaml:"synthesisModel,omitempty"`
	EmbeddingModel string  `yaml:"embeddingModel,omitempty"`
	MaxQueries     int     `yaml:"maxQueries,omitempty"`
	InputCost      float64 `yaml:"inputCostPerMillion,omitempty"`
	OutputCost     float64 `yaml:"outputCostPerMillion,omitempty"`
}

// ConfluenceConfig points at the Confluence MCP tool server. Without an
// MCPURL the query-language branch searches the local store.
type ConfluenceConfig struct {
	MCPURL string `yaml:"mcpUrl,omitempty"`
	// BaseURL turns relative page links into absolute ones.
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// RetrievalConfig tunes both retrieval branches.
type RetrievalConfig struct {
	MaxRounds           int      `yaml:"maxRounds,omitempty"`
	PoolSize            int      `yaml:"poolSize,omitempty"`
	MaxVectorCandidates int      `yaml:"maxVectorCandidates,omitempty"`
	MinSimilarity       float32  `yaml:"minSimilarity,omitempty"`
	ExcludedExtensions  []string `yaml:"excludedExtensions,omitempty"`
	// DisableVector turns the similarity branch off.
	DisableVector bool `yaml:"disableVector,omitempty"`
}

// ServerConfig configures `ragflow serve`.
type ServerConfig struct {
	// Addr is the listen address for streamable HTTP. Empty serves stdio.
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		LogLevel: "info",
		AI: AIConfig{
			Host:           aiDefaults.ChatHost,
			APIKey:         aiDefaults.APIKey,
			QueryModel:     aiDefaults.QueryModel,
			JudgeModel:     aiDefaults.JudgeModel,
			SynthesisModel: aiDefaults.SynthesisModel,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			MaxQueries:     aiDefaults.MaxQueries,
		},
		Retrieval: RetrievalConfig{
			MaxRounds:           retrieval.DefaultMaxRounds,
			MaxVectorCandidates: retrieval.DefaultMaxVectorCandidates,
			MinSimilarity:       0.60,
			ExcludedExtensions:  slices.Clone(retrieval.DefaultExcludedExtensions),
		},
	}
}

// Load reads ragflow.yml or ragflow.yaml from dir over the defaults and
// applies environment overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range FileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		break
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadFile reads a single config file over the defaults and applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.AI.APIKey = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.AI.Host = v
		c.AI.ChatHost = ""
		c.AI.EmbeddingHost = ""
	}
	if v, ok := lookup(EnvConfluenceMCP); ok && v != "" {
		c.Confluence.MCPURL = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// AIConfig builds the provider configuration.
func (c *Config) AIConfig() *ai.Config {
	chatHost, embeddingHost := c.AI.ChatHost, c.AI.EmbeddingHost
	if chatHost == "" {
		chatHost = c.AI.Host
	}
	if embeddingHost == "" {
		embeddingHost = c.AI.Host
	}
	return ai.NewConfig(
		ai.WithChatHost(chatHost),
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithQueryModel(c.AI.QueryModel),
		ai.WithJudgeModel(c.AI.JudgeModel),
		ai.WithSynthesisModel(c.AI.SynthesisModel),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithMaxQueries(c.AI.MaxQueries),
		ai.WithPricing(c.AI.InputCost, c.AI.OutputCost),
	)
}

// RetrievalOptions converts the retrieval settings.
func (c *Config) RetrievalOptions() []retrieval.Option {
	opts := []retrieval.Option{
		retrieval.WithMaxRounds(c.Retrieval.MaxRounds),
		retrieval.WithMaxVectorCandidates(c.Retrieval.MaxVectorCandidates),
		retrieval.WithExcludedExtensions(c.Retrieval.ExcludedExtensions...),
	}
	if c.Retrieval.PoolSize > 0 {
		opts = append(opts, retrieval.WithPoolSize(c.Retrieval.PoolSize))
	}
	return opts
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("config: minSimilarity %v out of range [-1, 1]", c.Retrieval.MinSimilarity)
	}
	if c.Retrieval.MaxVectorCandidates < 1 {
		return errors.New("config: maxVectorCandidates must be at least 1")
	}
	return nil
}

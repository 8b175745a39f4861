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

// Package ragflow wires the retrieval workflow to its storage, model and
// backend dependencies.
package ragflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/ai/openai"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/backend/confluence"
	"github.com/poiesic/ragflow/backend/local"
	"github.com/poiesic/ragflow/config"
	"github.com/poiesic/ragflow/graph"
	"github.com/poiesic/ragflow/ingestion"
	"github.com/poiesic/ragflow/mcpserver"
	"github.com/poiesic/ragflow/reembed"
	"github.com/poiesic/ragflow/retrieval"
	"github.com/poiesic/ragflow/storage"
	"github.com/poiesic/ragflow/storage/badger"
	"github.com/poiesic/ragflow/workflow"
)

// Engine owns the document store, the model provider, the backends and the
// workflow built over them.
type Engine struct {
	cfg        *config.Config
	backend    *badger.Backend
	repo       storage.DocumentRepository
	provider   ai.AIProvider
	confluence *confluence.Client
	searcher   backend.Searcher
	fetcher    backend.DocumentFetcher
	workflow   *workflow.Workflow
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
	monitor  retrieval.FilterMonitor
	searcher backend.Searcher
	fetcher  backend.DocumentFetcher
}

// WithProvider uses provider instead of building an OpenAI-compatible one
// from the configuration. The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger for the engine and everything it builds.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMonitor observes every relevance filter run.
func WithMonitor(monitor retrieval.FilterMonitor) EngineOption {
	return func(o *engineOptions) {
		o.monitor = monitor
	}
}

// WithSearcher replaces the configured query-language backend.
func WithSearcher(searcher backend.Searcher, fetcher backend.DocumentFetcher) EngineOption {
	return func(o *engineOptions) {
		o.searcher = searcher
		o.fetcher = fetcher
	}
}

// NewEngine opens the document store and builds the workflow described by
// cfg. With an empty DataDir the store is in memory. When no Confluence MCP
// endpoint is configured, CQL search and page fetches are served from the
// local store.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{cfg: cfg, logger: options.logger}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	b, err := badger.OpenBackend(cfg.DataDir, cfg.DataDir == "")
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	e.backend = b
	e.repo = badger.NewDocumentRepository(b)

	e.provider = options.provider
	if e.provider == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if e.provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			return nil, fmt.Errorf("create AI provider: %w", err)
		}
	}

	if err := e.openSearcher(ctx, options); err != nil {
		return nil, err
	}

	wfOpts := []workflow.Option{
		workflow.WithLogger(e.logger),
		workflow.WithSearcher(e.searcher, e.fetcher),
		workflow.WithRetrievalOptions(cfg.RetrievalOptions()...),
	}
	if options.monitor != nil {
		wfOpts = append(wfOpts, workflow.WithRetrievalOptions(retrieval.WithMonitor(options.monitor)))
	}
	if !cfg.Retrieval.DisableVector {
		vs, err := local.NewVectorSearcher(e.repo, e.provider.Embedder(),
			local.WithLogger(e.logger),
			local.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
			local.WithMaxHits(cfg.Retrieval.MaxVectorCandidates),
		)
		if err != nil {
			return nil, err
		}
		wfOpts = append(wfOpts, workflow.WithVectorSearcher(vs))
	}

	if e.workflow, err = workflow.New(e.provider, wfOpts...); err != nil {
		return nil, err
	}

	e.logger.Info("engine ready",
		"sources", e.workflow.Sources(),
		"remote", e.confluence != nil,
		"persistent", cfg.DataDir != "")
	ok = true
	return e, nil
}

func (e *Engine) openSearcher(ctx context.Context, options *engineOptions) error {
	if options.searcher != nil {
		e.searcher, e.fetcher = options.searcher, options.fetcher
		return nil
	}

	if url := e.cfg.Confluence.MCPURL; url != "" {
		client, err := confluence.Dial(ctx, url,
			confluence.WithLogger(e.logger),
			confluence.WithBaseURL(e.cfg.Confluence.BaseURL),
		)
		if err != nil {
			return fmt.Errorf("connect to confluence: %w", err)
		}
		e.confluence = client
		e.searcher, e.fetcher = client, client
		return nil
	}

	searcher, err := local.NewSearcher(e.repo, local.WithSearchLogger(e.logger))
	if err != nil {
		return err
	}
	fetcher, err := local.NewFetcher(e.repo)
	if err != nil {
		return err
	}
	e.searcher, e.fetcher = searcher, fetcher
	return nil
}

// Ask answers a question.
func (e *Engine) Ask(ctx context.Context, query string) (*workflow.Result, error) {
	return e.workflow.Run(ctx, query)
}

// Stream answers a question, yielding an update as each node completes.
func (e *Engine) Stream(ctx context.Context, query string) iter.Seq2[graph.Update[workflow.State], error] {
	return e.workflow.Stream(ctx, query)
}

// Sources reports which retrieval branches are enabled.
func (e *Engine) Sources() workflow.Sources {
	return e.workflow.Sources()
}

// Repository returns the document store.
func (e *Engine) Repository() storage.DocumentRepository {
	return e.repo
}

// NewIngestionPipeline returns a pipeline that stores and embeds documents.
// The caller must Release it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(e.logger)}, opts...)
	return ingestion.NewPipeline(e.repo, e.provider, opts...)
}

// NewReembedder returns a reembedder over the document store.
func (e *Engine) NewReembedder(cfg *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(e.repo, e.provider.Embedder(), cfg, progress)
}

// NewMCPService exposes the engine's backends and workflow as MCP tools.
func (e *Engine) NewMCPService() (*mcpserver.Service, error) {
	return mcpserver.NewService(e.searcher, e.fetcher,
		mcpserver.WithAnswerer(e.workflow),
		mcpserver.WithLogger(e.logger),
	)
}

// Close releases every resource the engine holds.
func (e *Engine) Close() error {
	var errs []error
	if e.workflow != nil {
		e.workflow.Close()
	}
	if e.confluence != nil {
		if err := e.confluence.Close(); err != nil {
			e.logger.Error("error closing confluence client", "err", err)
			errs = append(errs, err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Error("error closing document repository", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

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

package workflow

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/graph"
	"github.com/poiesic/ragflow/retrieval"
)

// Workflow answers questions by running the retrieval graph.
// It is safe for concurrent use.
type Workflow struct {
	generator      ai.QueryGenerator
	synthesizer    ai.AnswerSynthesizer
	aggregator     *retrieval.Aggregator
	filterLoop     *retrieval.FilterLoop
	vectorSearcher backend.VectorSearcher
	vectorFilter   *retrieval.VectorFilter
	sources        Sources
	runnable       *graph.Runnable[State]
	logger         *slog.Logger
}

// Option configures a Workflow.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	retrievalOpts  []retrieval.Option
	searcher       backend.Searcher
	fetcher        backend.DocumentFetcher
	vectorSearcher backend.VectorSearcher
}

// WithLogger sets the logger for the workflow and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSearcher enables the CQL branch. The fetcher supplies page bodies to
// the filter loop.
func WithSearcher(searcher backend.Searcher, fetcher backend.DocumentFetcher) Option {
	return func(c *config) {
		c.searcher = searcher
		c.fetcher = fetcher
	}
}

// WithVectorSearcher enables the similarity branch.
func WithVectorSearcher(searcher backend.VectorSearcher) Option {
	return func(c *config) {
		c.vectorSearcher = searcher
	}
}

// WithRetrievalOptions passes options to the aggregator, filter loop and
// vector filter.
func WithRetrievalOptions(opts ...retrieval.Option) Option {
	return func(c *config) {
		c.retrievalOpts = append(c.retrievalOpts, opts...)
	}
}

// New builds a workflow. At least one of WithSearcher and WithVectorSearcher
// is required.
func New(provider ai.AIProvider, opts ...Option) (*Workflow, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	w := &Workflow{
		generator:      provider.QueryGenerator(),
		synthesizer:    provider.AnswerSynthesizer(),
		vectorSearcher: cfg.vectorSearcher,
		logger:         cfg.logger,
	}
	retrievalOpts := append([]retrieval.Option{retrieval.WithLogger(cfg.logger)}, cfg.retrievalOpts...)

	if cfg.searcher != nil {
		if cfg.fetcher == nil {
			return nil, ErrFetcherRequired
		}
		aggregator, err := retrieval.NewAggregator(cfg.searcher, retrievalOpts...)
		if err != nil {
			return nil, err
		}
		filterLoop, err := retrieval.NewFilterLoop(provider.RelevanceJudge(), cfg.fetcher, retrievalOpts...)
		if err != nil {
			aggregator.Release()
			return nil, err
		}
		w.aggregator = aggregator
		w.filterLoop = filterLoop
		w.sources |= SourceConfluence
	}
	if cfg.vectorSearcher != nil {
		w.vectorFilter = retrieval.NewVectorFilter(retrievalOpts...)
		w.sources |= SourceVector
	}
	if w.sources == 0 {
		return nil, ErrNoSources
	}

	runnable, err := graph.New[State](MergeState, graph.WithLogger(cfg.logger)).
		AddNode(NodeQueryGeneration, w.generateAndSearch).
		AddNode(NodeVectorSearch, w.vectorSearch).
		AddNode(NodeConfluenceFilter, w.filterConfluence).
		AddNode(NodeVectorFilter, w.filterVector).
		AddNode(NodeAnswer, w.synthesize, graph.Deferred()).
		SetConditionalEntry(Route, NodeQueryGeneration, NodeVectorSearch).
		AddEdge(NodeQueryGeneration, NodeConfluenceFilter).
		AddEdge(NodeVectorSearch, NodeVectorFilter).
		AddEdge(NodeConfluenceFilter, NodeAnswer).
		AddEdge(NodeVectorFilter, NodeAnswer).
		Compile()
	if err != nil {
		w.Close()
		return nil, err
	}
	w.runnable = runnable
	return w, nil
}

// Sources reports the branches this workflow runs.
func (w *Workflow) Sources() Sources {
	return w.sources
}

// Run answers query and returns the result of the completed run.
func (w *Workflow) Run(ctx context.Context, query string) (*Result, error) {
	initial, err := w.initialState(query)
	if err != nil {
		return nil, err
	}

	w.logger.Info("run started", "session_id", initial.SessionID)
	final, err := w.runnable.Invoke(ctx, initial)
	if err != nil {
		w.logger.Error("run failed", "session_id", initial.SessionID, "error", err)
		return nil, err
	}
	result := ResultFromState(final)
	w.logger.Info("run finished",
		"session_id", result.SessionID,
		"total_tokens", result.TotalUsage.TotalTokens)
	return result, nil
}

// Stream answers query and yields an update for every completed node. The
// State of the last update holds the final answer.
func (w *Workflow) Stream(ctx context.Context, query string) iter.Seq2[graph.Update[State], error] {
	initial, err := w.initialState(query)
	if err != nil {
		return func(yield func(graph.Update[State], error) bool) {
			yield(graph.Update[State]{}, err)
		}
	}
	return w.runnable.Stream(ctx, initial)
}

// Close releases the search worker pool.
func (w *Workflow) Close() {
	if w.aggregator != nil {
		w.aggregator.Release()
	}
}

func (w *Workflow) initialState(query string) (State, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return State{}, ErrEmptyQuery
	}
	return NewState(uuid.NewString(), query, w.sources), nil
}

// Result is the outcome of a completed run.
type Result struct {
	SessionID string
	Query     string
	Answer    string

	// Queries are the generated CQL queries.
	Queries []string
	// Pages are the pages the relevance filter kept.
	Pages []core.Candidate
	// VectorCandidates are the similarity hits kept for the answer.
	VectorCandidates []core.Candidate
	// Contents holds the page bodies fetched during filtering.
	Contents retrieval.ContentCache

	// Rounds is the number of judge rounds; zero when filtering was skipped.
	Rounds int

	// BranchErrors lists retrieval branches that failed, keyed by node name.
	// The answer was built without them.
	BranchErrors map[string]string

	Usage      map[string]core.Usage
	TotalUsage core.Usage
}

// Degraded reports whether a retrieval branch failed during the run.
func (r *Result) Degraded() bool {
	return len(r.BranchErrors) > 0
}

// ResultFromState extracts the result of a finished run.
func ResultFromState(s State) *Result {
	result := &Result{
		SessionID:    s.SessionID,
		Query:        s.UserQuery,
		Answer:       s.FinalAnswer,
		Queries:      s.GeneratedQueries,
		Contents:     s.ContentCache,
		BranchErrors: s.BranchErrors,
		Usage:        s.Usage,
		TotalUsage:   s.TotalUsage(),
	}
	if s.FilteredResult != nil {
		result.Rounds = s.FilteredResult.Rounds
		if s.FilteredResult.Decision != nil {
			result.Pages = s.FilteredResult.Decision.Pages
		}
	}
	if s.VectorResult != nil {
		result.VectorCandidates = s.VectorResult.Candidates
	}
	return result
}

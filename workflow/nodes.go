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
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/retrieval"
)

// NoEvidenceAnswer is the answer given when neither branch kept anything.
const NoEvidenceAnswer = "I could not find any documents relevant to this question."

// generateAndSearch turns the question into CQL queries and aggregates the
// search results of all of them.
func (w *Workflow) generateAndSearch(ctx context.Context, s State) (State, error) {
	generated, err := w.generator.GenerateQueries(ctx, s.UserQuery)
	if err != nil {
		return State{}, fmt.Errorf("generate queries: %w", err)
	}

	candidates, err := w.aggregator.Aggregate(ctx, generated.Queries)
	if err != nil {
		return State{}, fmt.Errorf("aggregate: %w", err)
	}

	w.logger.Debug("search aggregated",
		"session_id", s.SessionID,
		"queries", len(generated.Queries),
		"candidates", len(candidates))

	return State{
		GeneratedQueries: generated.Queries,
		Candidates:       candidates,
		Usage:            map[string]core.Usage{NodeQueryGeneration: generated.Usage},
	}, nil
}

// vectorSearch runs the similarity search. A failing vector store degrades
// to an empty branch and is recorded in BranchErrors.
func (w *Workflow) vectorSearch(ctx context.Context, s State) (State, error) {
	hits, err := w.vectorSearcher.VectorSearch(ctx, s.UserQuery)
	if err != nil {
		if ctx.Err() != nil {
			return State{}, ctx.Err()
		}
		w.logger.Warn("vector search failed",
			"session_id", s.SessionID,
			"error", err)
		return State{BranchErrors: map[string]string{NodeVectorSearch: err.Error()}}, nil
	}
	return State{VectorCandidates: retrieval.NormalizeVectorHits(hits)}, nil
}

func (w *Workflow) filterConfluence(ctx context.Context, s State) (State, error) {
	result, err := w.filterLoop.Run(ctx, s.UserQuery, s.Candidates, s.ContentCache)
	if err != nil {
		return State{}, err
	}
	return State{
		FilteredResult: result,
		ContentCache:   result.Contents,
		Usage:          map[string]core.Usage{NodeConfluenceFilter: result.Usage},
	}, nil
}

func (w *Workflow) filterVector(_ context.Context, s State) (State, error) {
	result := w.vectorFilter.Filter(s.VectorCandidates)
	return State{
		VectorResult: result,
		Usage:        map[string]core.Usage{NodeVectorFilter: result.Usage},
	}, nil
}

// synthesize runs after both branches and writes the final answer.
func (w *Workflow) synthesize(ctx context.Context, s State) (State, error) {
	var pages, vector []core.Candidate
	if s.FilteredResult != nil && s.FilteredResult.Decision != nil {
		pages = s.FilteredResult.Decision.Pages
	}
	if s.VectorResult != nil {
		vector = s.VectorResult.Candidates
	}

	if len(pages) == 0 && len(vector) == 0 {
		if len(s.BranchErrors) > 0 {
			return State{}, fmt.Errorf("%w: %s", ErrBranchFailed, describeBranchErrors(s.BranchErrors))
		}
		w.logger.Info("no evidence for answer", "session_id", s.SessionID)
		return State{FinalAnswer: NoEvidenceAnswer}, nil
	}
	if len(s.BranchErrors) > 0 {
		w.logger.Warn("answering from partial evidence",
			"session_id", s.SessionID,
			"failed", slices.Sorted(maps.Keys(s.BranchErrors)))
	}

	answer, err := w.synthesizer.Synthesize(ctx, ai.SynthesisRequest{
		UserQuery:        s.UserQuery,
		Pages:            pages,
		VectorCandidates: vector,
		Contents:         s.ContentCache,
	})
	if err != nil {
		return State{}, fmt.Errorf("synthesize: %w", err)
	}

	w.logger.Debug("answer synthesized",
		slog.String("session_id", s.SessionID),
		slog.Int("pages", len(pages)),
		slog.Int("vector_candidates", len(vector)))

	return State{
		FinalAnswer: answer.Text,
		Usage:       map[string]core.Usage{NodeAnswer: answer.Usage},
	}, nil
}

// describeBranchErrors renders errors as "node: message" in node order.
func describeBranchErrors(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for _, node := range slices.Sorted(maps.Keys(errs)) {
		parts = append(parts, node+": "+errs[node])
	}
	return strings.Join(parts, "; ")
}

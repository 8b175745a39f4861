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

package local

import (
	"context"
	"log/slog"
	"slices"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

const (
	DefaultMinSimilarity = 0.60
	DefaultMaxHits       = 10
	highlightsPerHit     = 3
	verbatimBoost        = 0.3
)

// VectorSearcher performs semantic search over the local document store.
type VectorSearcher struct {
	repository    storage.Repository
	embedder      ai.Embedder
	minSimilarity float32
	maxHits       int
	logger        *slog.Logger
}

var _ backend.VectorSearcher = (*VectorSearcher)(nil)

// Option configures a VectorSearcher.
type Option func(*VectorSearcher) error

// WithLogger sets a custom logger for the searcher.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorSearcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "local-vector-search")
		return nil
	}
}

// WithMinSimilarity sets the similarity threshold below which documents are
// not returned.
func WithMinSimilarity(minSimilarity float32) Option {
	return func(s *VectorSearcher) error {
		s.minSimilarity = minSimilarity
		return nil
	}
}

// WithMaxHits caps the number of hits per search.
func WithMaxHits(maxHits int) Option {
	return func(s *VectorSearcher) error {
		if maxHits < 1 {
			return storage.ErrInvalidQuery
		}
		s.maxHits = maxHits
		return nil
	}
}

// NewVectorSearcher creates a searcher over repository using embedder for
// query vectors.
func NewVectorSearcher(repository storage.Repository, embedder ai.Embedder, opts ...Option) (*VectorSearcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &VectorSearcher{
		repository:    repository,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		maxHits:       DefaultMaxHits,
		logger:        slog.Default().With("component", "local-vector-search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// VectorSearch returns the stored documents most similar to query, best first.
// Documents containing every significant query word get a small boost.
func (s *VectorSearcher) VectorSearch(ctx context.Context, query string) ([]backend.VectorHit, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.repository.FindSimilar(ctx, core.NormalizeVector(embedding), s.minSimilarity, s.maxHits)
	if err != nil {
		s.logger.Error("error querying for similar documents", "err", err)
		return nil, err
	}

	hits := make([]backend.VectorHit, 0, len(matches))
	for _, match := range matches {
		if match == nil || match.Document == nil {
			continue
		}
		doc := match.Document
		score := float64(match.Score)
		if containsAllQueryWords(doc.Title+" "+doc.Contents, query) {
			score += verbatimBoost
		}
		hits = append(hits, backend.VectorHit{
			SourceTitle: doc.SourceTitle(),
			Highlights:  highlights(doc.Contents, query, highlightsPerHit),
			Score:       score,
		})
	}

	slices.SortStableFunc(hits, func(a, b backend.VectorHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	s.logger.Debug("vector search complete", "query", query, "hits", len(hits))
	return hits, nil
}

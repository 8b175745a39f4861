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

package retrieval

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
)

// Aggregator runs generated queries against a search backend and merges the
// hits into one ranked, deduplicated candidate list.
type Aggregator struct {
	searcher backend.Searcher
	pool     *ants.Pool
	excluded []string
	logger   *slog.Logger
}

// NewAggregator creates an aggregator over searcher.
// Release must be called when the aggregator is no longer needed.
func NewAggregator(searcher backend.Searcher, opts ...Option) (*Aggregator, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := ants.NewPool(o.poolSize)
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		searcher: searcher,
		pool:     pool,
		excluded: o.excluded,
		logger:   o.logger.With("component", "aggregator"),
	}, nil
}

// Aggregate searches every query concurrently and waits for all of them.
//
// A document surfaced by several queries is kept as first seen, in query
// order, even when a later query scored it higher. Identical query strings
// are searched once. The result is sorted by score, best first, with ties in
// discovery order. Failed queries are logged and contribute no hits, so an
// empty list is a valid outcome; only cancellation of ctx is an error.
func (a *Aggregator) Aggregate(ctx context.Context, queries []string) ([]core.Candidate, error) {
	queries = uniqueQueries(queries)
	results := make([][]backend.SearchHit, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		err := a.pool.Submit(func() {
			defer wg.Done()
			hits, err := a.searcher.Search(ctx, query)
			if err != nil {
				a.logger.Warn("search failed", "query", query, "err", err)
				return
			}
			results[i] = hits
		})
		if err != nil {
			wg.Done()
			a.logger.Error("could not schedule search", "query", query, "err", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	candidates := make([]core.Candidate, 0)
	excluded, missingID := 0, 0
	for _, hits := range results {
		for _, hit := range hits {
			if a.isExcluded(hit.Title) {
				excluded++
				continue
			}
			if hit.ID == "" {
				missingID++
				continue
			}
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			candidates = append(candidates, core.Candidate{
				ID:           hit.ID,
				Title:        hit.Title,
				Excerpt:      hit.Excerpt,
				URL:          hit.URL,
				LastModified: hit.LastModified,
				Score:        hit.Score,
			})
		}
	}

	SortByScore(candidates)

	a.logger.Debug("aggregated candidates",
		"queries", len(queries),
		"candidates", len(candidates),
		"excluded", excluded,
		"missing_id", missingID)
	return candidates, nil
}

// Release releases the worker pool. The aggregator should not be used after
// calling Release.
func (a *Aggregator) Release() {
	a.pool.Release()
}

func (a *Aggregator) isExcluded(title string) bool {
	lower := strings.ToLower(title)
	for _, ext := range a.excluded {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func uniqueQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// SortByScore sorts candidates by score, highest first. Equal scores keep
// their relative order.
func SortByScore(candidates []core.Candidate) {
	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

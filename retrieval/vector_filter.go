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
	"log/slog"
	"strings"

	"github.com/poiesic/ragflow/core"
)

// VectorResult is the filtered output of the similarity search branch.
type VectorResult struct {
	Candidates []core.Candidate
	Usage      core.Usage
}

// VectorFilter trims normalized similarity candidates without consulting a
// model: duplicates and hits without an excerpt are dropped, and the best
// scoring candidates up to a cap are kept.
type VectorFilter struct {
	max    int
	logger *slog.Logger
}

func NewVectorFilter(opts ...Option) *VectorFilter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &VectorFilter{
		max:    o.maxVectorCandidates,
		logger: o.logger.With("component", "vector-filter"),
	}
}

// Filter returns the kept candidates, best first. Candidates without an id
// are deduplicated by title.
func (f *VectorFilter) Filter(candidates []core.Candidate) *VectorResult {
	seen := make(map[string]struct{}, len(candidates))
	kept := make([]core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Excerpt) == "" {
			continue
		}
		key := "id:" + c.ID
		if !c.HasID() {
			key = "title:" + c.Title
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}

	SortByScore(kept)
	if f.max > 0 && len(kept) > f.max {
		kept = kept[:f.max]
	}

	f.logger.Debug("filtered vector candidates", "in", len(candidates), "kept", len(kept))
	return &VectorResult{Candidates: kept}
}

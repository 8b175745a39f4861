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

// Package retrieval gathers and filters candidate documents for a question.
//
// # Aggregation
//
// Aggregator fans a set of generated queries out to a backend.Searcher on a
// worker pool and merges the results into one candidate list. Hits whose title
// names a binary or office file are discarded, each document id is kept once
// (the earliest query that surfaced it wins) and the list is sorted by score,
// best first. A failing query contributes nothing; it never fails the batch.
//
// # Filtering
//
// FilterLoop asks an ai.RelevanceJudge which candidates matter. The judge may
// first request full page bodies; the loop fetches them once each into a
// ContentCache and asks again with the fetched bodies attached, until the
// judge answers with a decision:
//
//	loop, err := retrieval.NewFilterLoop(provider.RelevanceJudge(), fetcher,
//	    retrieval.WithMaxRounds(8))
//	result, err := loop.Run(ctx, question, candidates, nil)
//	for _, page := range result.Decision.Pages { ... }
//
// Any text from the judge ends the loop, even when the same response also asked
// for fetches. Rounds are capped; a judge that never decides yields
// ErrNonConvergence.
//
// NormalizeVectorHits and VectorFilter prepare similarity search results for
// the same downstream steps.
package retrieval

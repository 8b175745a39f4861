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

// Package ai provides abstractions for the model-backed capabilities used by ragflow.
//
// The orchestration core treats these capabilities as opaque: it sequences,
// retries and merges around them but never depends on how a query is written
// or how relevance is decided.
//
//   - QueryGenerator: turns a question into search-backend queries
//   - RelevanceJudge: filters candidates, optionally requesting page bodies
//   - AnswerSynthesizer: writes the final answer from filtered evidence
//   - Embedder: generates vector embeddings for the local document store
//   - AIProvider: aggregates the above for convenient initialization
//
// # Judgments
//
// A judge round returns a Judgment, a tagged variant of either fetch
// requests (JudgmentFetch) or a decision payload (JudgmentDecision). Use
// NewJudgment to classify a raw model response; non-empty text always wins.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inspect call counts and inject behavior.
package ai

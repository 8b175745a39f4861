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

// Package workflow answers a question from two retrieval sources.
//
// A run is a five-node graph over a shared State:
//
//	CQL_GENERATION_AGENT -----------> CONFLUENCE_RESPONSE_CHECKER_AGENT --+
//	                                                                      +--> ANSWER_GENERATION_AGENT
//	VECTOR_DB_SEARCH_AGENT ---------> VECTOR_DB_RESPONSE_CHECKER_AGENT ---+
//
// The entry router starts both branches (or only the configured one). The
// upper branch generates CQL queries, aggregates the search results and runs
// the relevance filter loop; the lower branch runs a similarity search and
// trims its hits. The answer node is deferred, so it runs once, after both
// branches have finished, and sees both results.
//
// Node updates are merged by MergeState: single-writer fields overwrite,
// the content cache keeps the first non-empty body per page and usage is
// summed per node.
package workflow

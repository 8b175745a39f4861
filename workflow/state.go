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
	"maps"

	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/retrieval"
)

// Node names. They appear in stream updates and as usage keys.
const (
	NodeQueryGeneration  = "CQL_GENERATION_AGENT"
	NodeVectorSearch     = "VECTOR_DB_SEARCH_AGENT"
	NodeConfluenceFilter = "CONFLUENCE_RESPONSE_CHECKER_AGENT"
	NodeVectorFilter     = "VECTOR_DB_RESPONSE_CHECKER_AGENT"
	NodeAnswer           = "ANSWER_GENERATION_AGENT"
)

// Sources selects the retrieval branches of a run.
type Sources uint8

const (
	SourceConfluence Sources = 1 << iota
	SourceVector

	AllSources = SourceConfluence | SourceVector
)

// Has reports whether s includes source.
func (s Sources) Has(source Sources) bool {
	return s&source != 0
}

func (s Sources) String() string {
	switch s {
	case SourceConfluence:
		return "confluence"
	case SourceVector:
		return "vector"
	case AllSources:
		return "confluence+vector"
	default:
		return "none"
	}
}

// State is the shared state of one run. Nodes receive a snapshot and return
// a State holding only the fields they write.
type State struct {
	SessionID string
	UserQuery string
	Sources   Sources

	GeneratedQueries []string
	Candidates       []core.Candidate
	VectorCandidates []core.Candidate

	FilteredResult *retrieval.FilterResult
	VectorResult   *retrieval.VectorResult

	ContentCache retrieval.ContentCache

	FinalAnswer string

	// BranchErrors records retrieval branches that failed and were carried on
	// empty, keyed by node name.
	BranchErrors map[string]string

	// Usage is keyed by node name.
	Usage map[string]core.Usage
}

// NewState creates the initial state of a run.
func NewState(sessionID, query string, sources Sources) State {
	return State{
		SessionID:    sessionID,
		UserQuery:    query,
		Sources:      sources,
		ContentCache: retrieval.ContentCache{},
		Usage:        map[string]core.Usage{},
	}
}

// TotalUsage sums the usage of every node.
func (s State) TotalUsage() core.Usage {
	var total core.Usage
	for _, u := range s.Usage {
		total = total.Add(u)
	}
	return total
}

// Route selects the entry nodes for a run. It depends only on the state.
func Route(s State) []string {
	var entries []string
	if s.Sources.Has(SourceConfluence) {
		entries = append(entries, NodeQueryGeneration)
	}
	if s.Sources.Has(SourceVector) {
		entries = append(entries, NodeVectorSearch)
	}
	return entries
}

// MergeState folds a node update into the current state without modifying
// either argument.
//
//   - SessionID, UserQuery, Sources and FinalAnswer keep their first
//     non-empty value.
//   - Query, candidate and result fields are replaced by non-empty updates.
//   - BranchErrors keep the first error recorded per node.
//   - ContentCache is merged with MergeContentCache.
//   - Usage is added per node.
func MergeState(current, update State) State {
	out := current

	if out.SessionID == "" {
		out.SessionID = update.SessionID
	}
	if out.UserQuery == "" {
		out.UserQuery = update.UserQuery
	}
	if out.Sources == 0 {
		out.Sources = update.Sources
	}
	if len(update.GeneratedQueries) > 0 {
		out.GeneratedQueries = update.GeneratedQueries
	}
	if len(update.Candidates) > 0 {
		out.Candidates = update.Candidates
	}
	if len(update.VectorCandidates) > 0 {
		out.VectorCandidates = update.VectorCandidates
	}
	if update.FilteredResult != nil {
		out.FilteredResult = update.FilteredResult
	}
	if update.VectorResult != nil {
		out.VectorResult = update.VectorResult
	}
	if out.FinalAnswer == "" {
		out.FinalAnswer = update.FinalAnswer
	}

	out.BranchErrors = mergeBranchErrors(current.BranchErrors, update.BranchErrors)
	out.ContentCache = MergeContentCache(current.ContentCache, update.ContentCache)
	out.Usage = mergeUsage(current.Usage, update.Usage)
	return out
}

// MergeContentCache returns a new cache holding, for every page id in either
// input, old's entry when it is non-empty and new's entry otherwise. For
// inputs that agree on the body of each page the result does not depend on
// argument order.
func MergeContentCache(old, new retrieval.ContentCache) retrieval.ContentCache {
	out := make(retrieval.ContentCache, len(old)+len(new))
	maps.Copy(out, old)
	for id, entry := range new {
		if existing, ok := out[id]; ok && !existing.IsEmpty() {
			continue
		}
		out[id] = entry
	}
	return out
}

func mergeUsage(current, update map[string]core.Usage) map[string]core.Usage {
	out := make(map[string]core.Usage, len(current)+len(update))
	maps.Copy(out, current)
	for node, u := range update {
		out[node] = out[node].Add(u)
	}
	return out
}

func mergeBranchErrors(current, update map[string]string) map[string]string {
	if len(update) == 0 {
		return current
	}
	out := make(map[string]string, len(current)+len(update))
	maps.Copy(out, current)
	for node, msg := range update {
		if _, ok := out[node]; !ok {
			out[node] = msg
		}
	}
	return out
}

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
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

const (
	// DefaultSearchLimit matches the page size of the Confluence search tool.
	DefaultSearchLimit = 25

	// Highlight markers wrap matched words in search excerpts.
	HighlightStart = "@@@hl@@@"
	HighlightEnd   = "@@@endhl@@@"

	titleHitWeight = 10
	wordPunct      = ".,!?;:'\"-()[]{}"
)

// Searcher answers CQL queries from the local document store.
type Searcher struct {
	repository storage.DocumentRepository
	limit      int
	logger     *slog.Logger
}

var _ backend.Searcher = (*Searcher)(nil)

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher) error

// WithSearchLimit caps the number of hits per query.
func WithSearchLimit(limit int) SearcherOption {
	return func(s *Searcher) error {
		if limit < 1 {
			return storage.ErrInvalidQuery
		}
		s.limit = limit
		return nil
	}
}

// WithSearchLogger sets a custom logger for the searcher.
func WithSearchLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "local-cql-search")
		return nil
	}
}

func NewSearcher(repository storage.DocumentRepository, opts ...SearcherOption) (*Searcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	s := &Searcher{
		repository: repository,
		limit:      DefaultSearchLimit,
		logger:     slog.Default().With("component", "local-cql-search"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search evaluates cql against every stored document and returns the matches
// best first. Title matches outweigh body matches.
func (s *Searcher) Search(ctx context.Context, cql string) ([]backend.SearchHit, error) {
	expr, err := parseCQL(cql)
	if err != nil {
		s.logger.Warn("rejecting query", "cql", cql, "err", err)
		return nil, err
	}

	docs, err := s.repository.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("error listing documents", "err", err)
		return nil, err
	}

	titleTerms, textTerms := expr.terms(nil, nil)
	marked := make(map[string]bool, len(titleTerms)+len(textTerms))
	for _, t := range titleTerms {
		marked[t] = true
	}
	for _, t := range textTerms {
		marked[t] = true
	}
	highlightQuery := strings.Join(append(slices.Clone(titleTerms), textTerms...), " ")

	hits := make([]backend.SearchHit, 0)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view := newDocView(doc)
		if !expr.match(view) {
			continue
		}
		hit := backend.SearchHit{
			ID:    doc.Key(),
			Title: doc.Title,
			URL:   doc.URL,
			Score: view.score(titleTerms, textTerms),
		}
		if !doc.UpdatedAt.IsZero() {
			hit.LastModified = doc.UpdatedAt.UTC().Format(time.RFC3339)
		}
		if fragments := highlights(doc.Contents, highlightQuery, 1); len(fragments) > 0 {
			hit.Excerpt = markWords(fragments[0], marked)
		}
		hits = append(hits, hit)
	}

	slices.SortStableFunc(hits, func(a, b backend.SearchHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > s.limit {
		hits = hits[:s.limit]
	}

	s.logger.Debug("cql search complete", "cql", cql, "hits", len(hits))
	return hits, nil
}

// Validate parses cql without running it.
func Validate(cql string) error {
	if _, err := parseCQL(cql); err != nil {
		return fmt.Errorf("%q: %w", cql, err)
	}
	return nil
}

// docView caches the word sets of a document for clause evaluation.
type docView struct {
	doc        *core.Document
	words      map[string]bool
	titleWords map[string]bool
	counts     map[string]int
}

func newDocView(doc *core.Document) *docView {
	v := &docView{
		doc:        doc,
		words:      make(map[string]bool),
		titleWords: make(map[string]bool),
		counts:     make(map[string]int),
	}
	for _, w := range tokenizeAndFilter(doc.Title) {
		v.titleWords[w] = true
		v.words[w] = true
	}
	for _, w := range tokenizeAndFilter(doc.Contents) {
		v.words[w] = true
		v.counts[w]++
	}
	return v
}

func (v *docView) score(titleTerms, textTerms []string) float64 {
	var score float64
	for _, t := range titleTerms {
		if v.titleWords[t] {
			score += titleHitWeight
		}
	}
	for _, t := range textTerms {
		if v.titleWords[t] {
			score += titleHitWeight
		}
		score += float64(v.counts[t])
	}
	return score
}

// markWords wraps the words of fragment found in terms with highlight
// markers. Fragments are single-space separated.
func markWords(fragment string, terms map[string]bool) string {
	if len(terms) == 0 {
		return fragment
	}
	words := strings.Split(fragment, " ")
	for i, word := range words {
		bare := strings.Trim(word, wordPunct)
		if bare == "" || !terms[strings.ToLower(bare)] {
			continue
		}
		at := strings.Index(word, bare)
		words[i] = word[:at] + HighlightStart + bare + HighlightEnd + word[at+len(bare):]
	}
	return strings.Join(words, " ")
}

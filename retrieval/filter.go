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
	"fmt"
	"log/slog"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
)

// FilterResult is the outcome of one FilterLoop run.
type FilterResult struct {
	// Decision holds the pages judged relevant. It is never nil on success.
	Decision *core.Decision

	// Contents is the content cache after the run: the cache passed in plus
	// every body fetched during the run.
	Contents ContentCache

	// Rounds is the number of judge calls made.
	Rounds int

	// Fetches is the number of fetcher calls made.
	Fetches int

	// Usage sums the model usage of every round.
	Usage core.Usage

	// Skipped is set when there were no candidates and the judge was not
	// consulted. An empty Decision without Skipped means the judge found
	// nothing relevant.
	Skipped bool

	// IgnoredFetches lists fetch requests that arrived together with the
	// decision and were not executed.
	IgnoredFetches []ai.FetchRequest
}

// FilterLoop drives a relevance judge to a decision, fetching the page bodies
// it asks for between rounds.
type FilterLoop struct {
	judge     ai.RelevanceJudge
	fetcher   backend.DocumentFetcher
	maxRounds int
	monitor   FilterMonitor
	logger    *slog.Logger
}

// NewFilterLoop creates a filter loop.
func NewFilterLoop(judge ai.RelevanceJudge, fetcher backend.DocumentFetcher, opts ...Option) (*FilterLoop, error) {
	if judge == nil {
		return nil, ErrJudgeRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &FilterLoop{
		judge:     judge,
		fetcher:   fetcher,
		maxRounds: o.maxRounds,
		monitor:   o.monitor,
		logger:    o.logger.With("component", "filter-loop"),
	}, nil
}

// Run filters candidates for query. cache seeds the content cache and is not
// modified; the grown cache is returned in the result.
//
// Each round shows the judge every candidate plus the bodies fetched so far.
// A round that returns only fetch requests fetches the uncached pages and
// continues. A round that returns any text ends the loop: the text is parsed
// as the decision and decided pages that were never fetched are fetched
// before returning. A judge or parse error fails the run; fetch errors are
// logged and the page is left out of the cache.
func (l *FilterLoop) Run(ctx context.Context, query string, candidates []core.Candidate, cache ContentCache) (result *FilterResult, err error) {
	result = &FilterResult{Contents: cache.Clone()}
	l.monitor.Start(query, len(candidates))
	defer func() {
		l.monitor.Finish(result, err)
	}()

	if len(candidates) == 0 {
		l.logger.Debug("no candidates to filter")
		result.Decision = &core.Decision{Pages: []core.Candidate{}}
		result.Skipped = true
		return result, nil
	}

	byID := make(map[string]core.Candidate, len(candidates))
	for _, c := range candidates {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = c
		}
	}

	emptyRounds := 0
	for round := 1; ; round++ {
		if l.maxRounds > 0 && round > l.maxRounds {
			return result, fmt.Errorf("%w: no decision after %d rounds", ErrNonConvergence, l.maxRounds)
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		l.monitor.RoundStarted(round)
		judgment, err := l.judge.Judge(ctx, ai.JudgmentRequest{
			UserQuery:   query,
			Candidates:  candidates,
			ToolOutputs: result.Contents.FormatToolOutputs(),
			Round:       round,
		})
		if err != nil {
			l.logger.Error("judge failed", "round", round, "err", err)
			return result, fmt.Errorf("judge round %d: %w", round, err)
		}
		result.Rounds = round
		result.Usage = result.Usage.Add(judgment.Usage)
		l.monitor.Judged(round, judgment)

		switch judgment.Kind {
		case ai.JudgmentDecision:
			if len(judgment.IgnoredFetches) > 0 {
				l.logger.Warn("ignoring fetch requests sent with the decision",
					"round", round, "fetches", len(judgment.IgnoredFetches))
				result.IgnoredFetches = append(result.IgnoredFetches, judgment.IgnoredFetches...)
			}
			decision, err := core.ParseDecision(judgment.Payload)
			if err != nil {
				l.logger.Error("could not parse decision", "round", round, "payload", judgment.Payload, "err", err)
				return result, err
			}
			for _, page := range decision.Pages {
				if !page.HasID() {
					continue
				}
				l.fetch(ctx, result, page.ID, page.Title, urlFor(byID, page))
			}
			result.Decision = decision
			l.logger.Debug("filtering converged",
				"rounds", result.Rounds,
				"fetches", result.Fetches,
				"relevant", len(decision.Pages))
			return result, nil

		case ai.JudgmentFetch:
			if len(judgment.Fetches) == 0 {
				l.logger.Warn("judge returned neither text nor fetch requests", "round", round)
				// Two consecutive empty answers after the first round mean the judge is stuck.
				if round > 1 {
					emptyRounds++
				}
				if emptyRounds >= 2 {
					return result, fmt.Errorf("%w: judge stalled after %d rounds", ErrNonConvergence, round)
				}
				continue
			}
			emptyRounds = 0
			for _, req := range judgment.Fetches {
				candidate := byID[req.ID]
				title := req.Title
				if title == "" {
					title = candidate.Title
				}
				l.fetch(ctx, result, req.ID, title, candidate.URL)
			}

		default:
			return result, fmt.Errorf("%w: %v", ErrUnknownJudgment, judgment.Kind)
		}
	}
}

// fetch loads id into the cache unless it is already there.
func (l *FilterLoop) fetch(ctx context.Context, result *FilterResult, id, title, url string) {
	if id == "" {
		return
	}
	if result.Contents.Has(id) {
		l.monitor.FetchSkipped(id)
		return
	}

	result.Fetches++
	body, err := l.fetcher.FetchDocument(ctx, id, title)
	l.monitor.Fetched(id, err)
	if err != nil {
		l.logger.Warn("fetch failed", "page_id", id, "title", title, "err", err)
		return
	}
	result.Contents.Put(core.ContentEntry{
		ID:          id,
		Title:       title,
		FullContent: body,
		URL:         url,
	})
}

func urlFor(byID map[string]core.Candidate, page core.Candidate) string {
	if page.URL != "" {
		return page.URL
	}
	return byID[page.ID].URL
}

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

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/backend/local"
	"github.com/poiesic/ragflow/workflow"
)

var (
	// ErrSearcherRequired is returned when a Service is built without a searcher.
	ErrSearcherRequired = errors.New("searcher required")
	// ErrFetcherRequired is returned when a Service is built without a fetcher.
	ErrFetcherRequired = errors.New("fetcher required")
)

// Answerer answers a question end to end.
type Answerer interface {
	Run(ctx context.Context, question string) (*workflow.Result, error)
}

// Service holds the backends used by the MCP tool handlers.
type Service struct {
	searcher backend.Searcher
	fetcher  backend.DocumentFetcher
	answerer Answerer
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAnswerer enables the answer tool.
func WithAnswerer(answerer Answerer) ServiceOption {
	return func(s *Service) {
		s.answerer = answerer
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.With("component", "mcpserver")
		}
	}
}

// NewService creates a Service over the given backends.
func NewService(searcher backend.Searcher, fetcher backend.DocumentFetcher, opts ...ServiceOption) (*Service, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	s := &Service{
		searcher: searcher,
		fetcher:  fetcher,
		logger:   slog.Default().With("component", "mcpserver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SearchInput is the argument of the search tool.
type SearchInput struct {
	CQL string `json:"cql" jsonschema:"a Confluence Query Language query, e.g. text ~ \"audit\" AND title ~ \"process\""`
}

// SearchOutput mirrors the Confluence search response.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Start   int            `json:"start"`
	Limit   int            `json:"limit"`
	Size    int            `json:"size"`
}

// SearchResult is one page of a search response.
type SearchResult struct {
	Content      PageContent `json:"content"`
	Title        string      `json:"title"`
	Excerpt      string      `json:"excerpt"`
	URL          string      `json:"url,omitempty"`
	LastModified string      `json:"lastModified,omitempty"`
	Score        float64     `json:"score"`
}

// PageContent identifies the page of a search result.
type PageContent struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Search runs a CQL query against the searcher.
func (s *Service) Search(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.CQL) == "" {
		return nil, SearchOutput{}, fmt.Errorf("cql is required")
	}

	hits, err := s.searcher.Search(ctx, input.CQL)
	if err != nil {
		s.logger.Warn("search failed", "cql", input.CQL, "err", err)
		return nil, SearchOutput{}, err
	}
	if len(hits) > local.DefaultSearchLimit {
		hits = hits[:local.DefaultSearchLimit]
	}

	out := SearchOutput{
		Results: make([]SearchResult, 0, len(hits)),
		Limit:   local.DefaultSearchLimit,
		Size:    len(hits),
	}
	for _, hit := range hits {
		out.Results = append(out.Results, SearchResult{
			Content:      PageContent{ID: hit.ID, Type: "page", Title: hit.Title},
			Title:        hit.Title,
			Excerpt:      hit.Excerpt,
			URL:          hit.URL,
			LastModified: hit.LastModified,
			Score:        hit.Score,
		})
	}
	return nil, out, nil
}

// FetchInput is the argument of the fetch tool.
type FetchInput struct {
	PageID string `json:"page_id" jsonschema:"the id of the page to retrieve"`
	Title  string `json:"title,omitempty" jsonschema:"optional page title included in the output"`
}

// Fetch returns the body of a page as text.
func (s *Service) Fetch(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.PageID) == "" {
		return nil, nil, fmt.Errorf("page_id is required")
	}

	body, err := s.fetcher.FetchDocument(ctx, input.PageID, input.Title)
	if err != nil {
		s.logger.Warn("fetch failed", "page_id", input.PageID, "err", err)
		return nil, nil, err
	}

	text := body
	if input.Title != "" {
		text = "Title of the page is " + input.Title + "\n\n" + body
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// AnswerInput is the argument of the answer tool.
type AnswerInput struct {
	Question string `json:"question" jsonschema:"the question to answer"`
}

// AnswerOutput is the result of the answer tool.
type AnswerOutput struct {
	SessionID   string   `json:"session_id"`
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	TotalTokens int      `json:"total_tokens"`
	Cost        float64  `json:"cost"`

	// BranchErrors names the retrieval branches that failed; the answer was
	// built without them.
	BranchErrors map[string]string `json:"branch_errors,omitempty"`
}

// Source is a page an answer is based on.
type Source struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Answer runs the workflow for a question.
func (s *Service) Answer(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (*mcp.CallToolResult, AnswerOutput, error) {
	result, err := s.answerer.Run(ctx, input.Question)
	if err != nil {
		s.logger.Error("answer failed", "err", err)
		return nil, AnswerOutput{}, err
	}

	out := AnswerOutput{
		SessionID:   result.SessionID,
		Answer:      result.Answer,
		Sources:     make([]Source, 0, len(result.Pages)+len(result.VectorCandidates)),
		TotalTokens: result.TotalUsage.TotalTokens,
		Cost:        result.TotalUsage.Cost,

		BranchErrors: result.BranchErrors,
	}
	for _, p := range result.Pages {
		out.Sources = append(out.Sources, Source{ID: p.ID, Title: p.Title, URL: p.URL})
	}
	for _, c := range result.VectorCandidates {
		out.Sources = append(out.Sources, Source{ID: c.ID, Title: c.Title, URL: c.URL})
	}
	return nil, out, nil
}

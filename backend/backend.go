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

// Package backend defines the retrieval backends the workflow searches:
// a query-language search backend, a vector similarity backend and a
// document fetcher for full page bodies.
package backend

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when a backend cannot be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrDocumentNotFound is returned by fetchers for unknown ids.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMalformedResponse is returned when a backend answers in an unexpected shape.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// SearchHit is one result of a query-language search.
type SearchHit struct {
	ID           string
	Title        string
	Excerpt      string
	URL          string
	LastModified string
	Score        float64
}

// VectorHit is one result of a similarity search. SourceTitle follows the
// "<page_id>_<title>" naming of ingested documents when the id is known.
type VectorHit struct {
	SourceTitle string
	Highlights  []string
	Score       float64
}

// Searcher runs a single query-language search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// VectorSearcher runs a similarity search for a natural-language query.
type VectorSearcher interface {
	VectorSearch(ctx context.Context, query string) ([]VectorHit, error)
}

// DocumentFetcher retrieves the full body of a document by id. The title is
// advisory and may be empty.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, id, title string) (string, error)
}

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

// Package local implements the vector search and document fetch backends on
// top of the local document store.
//
// VectorSearcher embeds the query, finds the most similar stored documents
// and returns hits titled "<page_id>_<title>" so that the vector result
// normalizer can recover page ids. Each hit carries highlight fragments: the
// passages of the document that share the most non-stop-words with the query.
//
// Fetcher returns the stored body of a page by its page id, making the local
// store usable as the document fetcher when no Confluence endpoint is set.
package local

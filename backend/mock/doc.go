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

// Package mock provides test doubles for the retrieval backends.
//
// Each mock serves canned data, counts its calls and accepts an injectable
// function that replaces the default behavior:
//
//	searcher := mock.NewMockSearcher()
//	searcher.Results["q1"] = []backend.SearchHit{{ID: "42", Title: "Audit", Score: 10}}
//	searcher.Errors["q2"] = errors.New("timeout")
//
//	fetcher := mock.NewMockFetcher(map[string]string{"42": "full body"})
//	fetcher.FetchCount("42")
package mock

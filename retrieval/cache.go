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
	"encoding/json"
	"maps"
	"slices"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
)

// ContentCache holds fetched page bodies keyed by page id. Entries are never
// replaced once they hold content, so the cache only grows.
type ContentCache map[string]core.ContentEntry

// Has reports whether id holds a non-empty entry.
func (c ContentCache) Has(id string) bool {
	entry, ok := c[id]
	return ok && !entry.IsEmpty()
}

// Put stores entry unless a non-empty entry already exists under its id. It
// reports whether the cache changed.
func (c ContentCache) Put(entry core.ContentEntry) bool {
	if entry.ID == "" || c.Has(entry.ID) {
		return false
	}
	if _, ok := c[entry.ID]; ok && entry.IsEmpty() {
		return false
	}
	c[entry.ID] = entry
	return true
}

// Clone returns a shallow copy; a nil cache clones to an empty one.
func (c ContentCache) Clone() ContentCache {
	out := make(ContentCache, len(c))
	maps.Copy(out, c)
	return out
}

// FormatToolOutputs renders the cache for the relevance judge: a JSON list of
// entries ordered by id, or ai.NoToolOutputs when nothing has been fetched.
func (c ContentCache) FormatToolOutputs() string {
	entries := make([]core.ContentEntry, 0, len(c))
	for _, id := range slices.Sorted(maps.Keys(c)) {
		if entry := c[id]; !entry.IsEmpty() {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return ai.NoToolOutputs
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return ai.NoToolOutputs
	}
	return string(out)
}

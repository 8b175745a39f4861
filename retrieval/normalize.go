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
	"regexp"

	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/core"
)

var sourceTitleID = regexp.MustCompile(`^(\d+)_`)

// NormalizeVectorHits maps similarity hits onto candidates. The id is the
// numeric "<id>_" prefix of the source title when present and empty
// otherwise; the excerpt is the first highlight.
func NormalizeVectorHits(hits []backend.VectorHit) []core.Candidate {
	candidates := make([]core.Candidate, 0, len(hits))
	for _, hit := range hits {
		c := core.Candidate{
			Title: hit.SourceTitle,
			Score: hit.Score,
		}
		if m := sourceTitleID.FindStringSubmatch(hit.SourceTitle); m != nil {
			c.ID = m[1]
		}
		if len(hit.Highlights) > 0 {
			c.Excerpt = hit.Highlights[0]
		}
		candidates = append(candidates, c)
	}
	return candidates
}

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

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decision is the parsed outcome of relevance filtering: the pages judged
// relevant, in the order the judge listed them.
type Decision struct {
	Pages []Candidate
	Raw   string
}

// IDs returns the identifiers of the decided pages that carry one.
func (d *Decision) IDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.HasID() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// IsEmpty reports whether no page was judged relevant.
func (d *Decision) IsEmpty() bool {
	return d == nil || len(d.Pages) == 0
}

// flexString accepts both JSON strings and numbers. Models regularly emit
// page ids and timestamps unquoted.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type decisionPage struct {
	PageID       flexString `json:"page_id"`
	Title        string     `json:"title"`
	Excerpt      string     `json:"matched_content"`
	URL          string     `json:"page_url"`
	LastModified flexString `json:"lastModified"`
	Score        flexFloat  `json:"match_score"`
}

// ParseDecision parses a judge's final payload: a JSON list of page objects
// in the same shape the candidates were presented in. The list may be wrapped
// in a markdown code fence or in an object under a "pages" key, and is passed
// through RepairJSON first. An empty list is a valid decision meaning nothing
// was relevant.
func ParseDecision(payload string) (*Decision, error) {
	body := RepairJSON(StripCodeFence(payload))
	if body == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecisionParse)
	}

	var pages []decisionPage
	if err := json.Unmarshal([]byte(body), &pages); err != nil {
		var wrapped struct {
			Pages []decisionPage `json:"pages"`
		}
		if werr := json.Unmarshal([]byte(body), &wrapped); werr != nil || wrapped.Pages == nil {
			return nil, fmt.Errorf("%w: %w", ErrDecisionParse, err)
		}
		pages = wrapped.Pages
	}

	decision := &Decision{Pages: make([]Candidate, 0, len(pages)), Raw: payload}
	for _, p := range pages {
		decision.Pages = append(decision.Pages, Candidate{
			ID:           string(p.PageID),
			Title:        p.Title,
			Excerpt:      p.Excerpt,
			URL:          p.URL,
			LastModified: string(p.LastModified),
			Score:        float64(p.Score),
		})
	}
	return decision, nil
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json)
// and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag on the opening line.
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

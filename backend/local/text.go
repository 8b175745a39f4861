package local

import (
	"slices"
	"strings"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "does": true, "which": true,
}

const maxFragmentRunes = 400

func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// splitFragments cuts a document into paragraphs, splitting paragraphs longer
// than maxFragmentRunes on word boundaries.
func splitFragments(contents string) []string {
	var fragments []string
	for _, para := range strings.Split(contents, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		runes := []rune(para)
		for len(runes) > maxFragmentRunes {
			cut := maxFragmentRunes
			for i := cut - 1; i > 0; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			fragments = append(fragments, strings.TrimSpace(string(runes[:cut])))
			runes = []rune(strings.TrimSpace(string(runes[cut:])))
		}
		para = string(runes)
		if para != "" {
			fragments = append(fragments, para)
		}
	}
	return fragments
}

// highlights returns up to n fragments of contents ranked by how many distinct
// query words they contain. Fragments without any query word are skipped
// unless nothing matches, in which case the opening fragment is returned.
func highlights(contents, query string, n int) []string {
	fragments := splitFragments(contents)
	if len(fragments) == 0 {
		return nil
	}

	queryWords := tokenizeAndFilter(query)
	type scored struct {
		index int
		hits  int
	}
	ranked := make([]scored, 0, len(fragments))
	for i, fragment := range fragments {
		words := make(map[string]bool)
		for _, w := range tokenizeAndFilter(fragment) {
			words[w] = true
		}
		hits := 0
		for _, q := range queryWords {
			if words[q] {
				hits++
			}
		}
		if hits > 0 {
			ranked = append(ranked, scored{index: i, hits: hits})
		}
	}

	if len(ranked) == 0 {
		return fragments[:1]
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return b.hits - a.hits
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = fragments[r.index]
	}
	return out
}

func containsAllQueryWords(document, query string) bool {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return false
	}

	docWordSet := make(map[string]bool)
	for _, word := range tokenizeAndFilter(document) {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}

	return true
}

package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/ragflow/ai"
)

const queryResponseSchema = `{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "cql": {"type": "string"},
          "justification": {"type": "string"}
        },
        "required": ["cql", "justification"],
        "additionalProperties": false
      }
    }
  },
  "required": ["queries"],
  "additionalProperties": false
}`

const queryPromptTemplate = `You write Confluence Query Language (CQL) searches.

Produce between 3 and %d CQL queries that together retrieve the pages needed to answer the user's question.

Rules:
- Identify the main subject of the question and keep it in every search term. Prefer siteSearch ~ "DMS audit" over siteSearch ~ "audit".
- Full-text clauses use siteSearch ~ "...". Never use text ~.
- A title ~ "..." clause must be OR-ed with a siteSearch clause and must also keep the main subject.
- Do not use label clauses.
- Add ORDER BY or date filters such as lastModified > now("-14d") only when the question asks for recent or latest content.
- Vary the approach across queries: exact terms, related concepts, title focus, synonyms, process wording.

Output ONLY valid JSON matching this schema, with one justification per query:

%s`

const judgePromptTemplate = `You filter Confluence pages for relevance to a user's question.

User question: %s

Candidate pages (JSON):
%s

Fetched page contents:
%s

For each candidate decide using its title, matched_content and match_score, plus any fetched contents above.
- Include a page when its title or excerpt relates to any part of the question.
- When the excerpt is too short or unclear to decide, call the %s tool with the page_id and title to read the full page.
- Exclude a page only when both title and excerpt are clearly unrelated.

Respond in exactly one of two ways:
1. Tool calls only, for pages you still need to read.
2. The final answer: a JSON list of the relevant page objects, copied unchanged from the candidate list, with no other text.

Never respond with both an empty list of tool calls and no text.`

const synthesisPromptTemplate = `Answer the user's question using only the evidence below. Cite pages by title and
include their URL when available. If the evidence does not answer the question, say so plainly.

User question: %s

Relevant Confluence pages:
%s

Related documents from semantic search:
%s`

// buildQueryPrompt creates the query generation system prompt.
func buildQueryPrompt(maxQueries int) string {
	return fmt.Sprintf(queryPromptTemplate, maxQueries, queryResponseSchema)
}

// buildJudgePrompt renders one judge round.
func buildJudgePrompt(req ai.JudgmentRequest) (string, error) {
	candidates, err := json.MarshalIndent(req.Candidates, "", "  ")
	if err != nil {
		return "", err
	}
	toolOutputs := req.ToolOutputs
	if strings.TrimSpace(toolOutputs) == "" {
		toolOutputs = ai.NoToolOutputs
	}
	return fmt.Sprintf(judgePromptTemplate, req.UserQuery, candidates, toolOutputs, ai.FetchPageTool), nil
}

// buildSynthesisPrompt renders the evidence gathered by both branches.
func buildSynthesisPrompt(req ai.SynthesisRequest) string {
	var pages strings.Builder
	if len(req.Pages) == 0 {
		pages.WriteString("(none)\n")
	}
	for _, p := range req.Pages {
		fmt.Fprintf(&pages, "## %s (%s)\n", p.Title, p.URL)
		if entry, ok := req.Contents[p.ID]; ok && !entry.IsEmpty() {
			pages.WriteString(entry.FullContent)
		} else {
			pages.WriteString(p.Excerpt)
		}
		pages.WriteString("\n\n")
	}

	var vectors strings.Builder
	if len(req.VectorCandidates) == 0 {
		vectors.WriteString("(none)\n")
	}
	for _, c := range req.VectorCandidates {
		fmt.Fprintf(&vectors, "## %s\n%s\n\n", c.Title, c.Excerpt)
	}

	return fmt.Sprintf(synthesisPromptTemplate, req.UserQuery, pages.String(), vectors.String())
}

// fetchPageTool describes the page fetch tool offered to the judge.
func fetchPageTool() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page_id": map[string]any{
				"type":        "string",
				"description": "The unique identifier of the Confluence page to retrieve.",
			},
			"title": map[string]any{
				"type":        "string",
				"description": "The title of the page, for logging.",
			},
		},
		"required": []string{"page_id"},
	}
}

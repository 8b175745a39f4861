package ai

import (
	"strings"

	"github.com/poiesic/ragflow/core"
)

// NoToolOutputs is sent to the judge in place of fetched page bodies when
// nothing has been fetched yet.
const NoToolOutputs = "Right now there is no output. You have to identify pages for which the tool needs to be called."

// FetchPageTool is the tool name the judge uses to request a full page body.
const FetchPageTool = "get_page_by_id"

// GeneratedQueries is the output of query generation.
type GeneratedQueries struct {
	Queries        []string
	Justifications []string
	Usage          core.Usage
}

// FetchRequest asks for the full body of one page.
type FetchRequest struct {
	ID    string `json:"page_id"`
	Title string `json:"title"`
}

// JudgmentKind tags the variant carried by a Judgment.
type JudgmentKind int

const (
	// JudgmentFetch means the judge only asked for page bodies.
	JudgmentFetch JudgmentKind = iota + 1
	// JudgmentDecision means the judge produced its final decision payload.
	JudgmentDecision
)

func (k JudgmentKind) String() string {
	switch k {
	case JudgmentFetch:
		return "fetch"
	case JudgmentDecision:
		return "decision"
	default:
		return "unknown"
	}
}

// Judgment is one round's response from a RelevanceJudge. Exactly one of
// Fetches (for JudgmentFetch) or Payload (for JudgmentDecision) is meaningful.
type Judgment struct {
	Kind    JudgmentKind
	Fetches []FetchRequest
	Payload string
	Usage   core.Usage

	// IgnoredFetches holds fetch requests that arrived alongside a decision
	// payload. They are never executed.
	IgnoredFetches []FetchRequest
}

// NewJudgment classifies a raw model response. Any non-empty text is the
// final decision, even when tool calls were also returned.
func NewJudgment(text string, fetches []FetchRequest, usage core.Usage) *Judgment {
	if strings.TrimSpace(text) != "" {
		return &Judgment{
			Kind:           JudgmentDecision,
			Payload:        text,
			Usage:          usage,
			IgnoredFetches: fetches,
		}
	}
	return &Judgment{
		Kind:    JudgmentFetch,
		Fetches: fetches,
		Usage:   usage,
	}
}

// FetchJudgment builds a fetch-only judgment.
func FetchJudgment(usage core.Usage, fetches ...FetchRequest) *Judgment {
	return &Judgment{Kind: JudgmentFetch, Fetches: fetches, Usage: usage}
}

// DecisionJudgment builds a decision judgment.
func DecisionJudgment(payload string, usage core.Usage) *Judgment {
	return &Judgment{Kind: JudgmentDecision, Payload: payload, Usage: usage}
}

// JudgmentRequest is the input to one judge round.
type JudgmentRequest struct {
	UserQuery  string
	Candidates []core.Candidate
	// ToolOutputs is the rendered content cache, or NoToolOutputs.
	ToolOutputs string
	// Round is 1-based.
	Round int
}

// SynthesisRequest carries the evidence gathered by both branches.
type SynthesisRequest struct {
	UserQuery string
	// Pages judged relevant by the query-language branch.
	Pages []core.Candidate
	// Candidates kept by the vector branch.
	VectorCandidates []core.Candidate
	// Full bodies fetched during filtering, keyed by page id.
	Contents map[string]core.ContentEntry
}

// Answer is the synthesized response.
type Answer struct {
	Text  string
	Usage core.Usage
}

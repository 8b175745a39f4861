package workflow

import (
	"testing"

	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/retrieval"
	"github.com/stretchr/testify/assert"
)

func entry(id, body string) core.ContentEntry {
	return core.ContentEntry{ID: id, Title: "page " + id, FullContent: body}
}

func TestMergeState_FieldRules(t *testing.T) {
	current := NewState("s-1", "how are audits run?", AllSources)
	current.FinalAnswer = "first"

	update := State{
		SessionID:        "s-2",
		UserQuery:        "other",
		GeneratedQueries: []string{`text ~ "audit"`},
		Candidates:       []core.Candidate{{ID: "1", Title: "Audit"}},
		FilteredResult:   &retrieval.FilterResult{Rounds: 2},
		FinalAnswer:      "second",
		Usage:            map[string]core.Usage{NodeQueryGeneration: {InputTokens: 10, TotalTokens: 10}},
	}

	got := MergeState(current, update)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "how are audits run?", got.UserQuery)
	assert.Equal(t, AllSources, got.Sources)
	assert.Equal(t, update.GeneratedQueries, got.GeneratedQueries)
	assert.Equal(t, update.Candidates, got.Candidates)
	assert.Same(t, update.FilteredResult, got.FilteredResult)
	assert.Equal(t, "first", got.FinalAnswer)
	assert.Equal(t, 10, got.Usage[NodeQueryGeneration].TotalTokens)

	// Empty updates leave written fields alone.
	again := MergeState(got, State{})
	assert.Equal(t, got.Candidates, again.Candidates)
	assert.Same(t, got.FilteredResult, again.FilteredResult)
}

func TestMergeState_UsageIsSummed(t *testing.T) {
	s := NewState("s", "q", AllSources)
	u := core.Usage{InputTokens: 5, OutputTokens: 1, TotalTokens: 6}

	s = MergeState(s, State{Usage: map[string]core.Usage{NodeAnswer: u}})
	s = MergeState(s, State{Usage: map[string]core.Usage{NodeAnswer: u}})

	assert.Equal(t, 12, s.Usage[NodeAnswer].TotalTokens)
	assert.Equal(t, 12, s.TotalUsage().TotalTokens)
}

func TestMergeState_DoesNotModifyArguments(t *testing.T) {
	current := NewState("s", "q", AllSources)
	current.ContentCache["1"] = entry("1", "body")
	current.Usage[NodeAnswer] = core.Usage{TotalTokens: 1}

	update := State{
		ContentCache: retrieval.ContentCache{"2": entry("2", "other")},
		Usage:        map[string]core.Usage{NodeAnswer: {TotalTokens: 2}},
	}

	got := MergeState(current, update)
	assert.Len(t, got.ContentCache, 2)
	assert.Len(t, current.ContentCache, 1)
	assert.Len(t, update.ContentCache, 1)
	assert.Equal(t, 1, current.Usage[NodeAnswer].TotalTokens)
	assert.Equal(t, 3, got.Usage[NodeAnswer].TotalTokens)
}

func TestMergeState_BranchOrderIndependent(t *testing.T) {
	base := NewState("s", "q", AllSources)
	base.Candidates = []core.Candidate{{ID: "1", Title: "One"}}

	confluence := State{
		FilteredResult: &retrieval.FilterResult{Rounds: 2},
		ContentCache: retrieval.ContentCache{
			"1": entry("1", "body one"),
			"2": entry("2", "body two"),
		},
		Usage: map[string]core.Usage{NodeConfluenceFilter: {TotalTokens: 40}},
	}
	vector := State{
		VectorResult: &retrieval.VectorResult{Candidates: []core.Candidate{{ID: "9", Title: "9_notes.txt"}}},
		ContentCache: retrieval.ContentCache{"2": entry("2", "body two")},
		Usage:        map[string]core.Usage{NodeVectorFilter: {}},
	}

	ab := MergeState(MergeState(base, confluence), vector)
	ba := MergeState(MergeState(base, vector), confluence)
	assert.Equal(t, ab, ba)
}

func TestMergeState_BranchErrors(t *testing.T) {
	s := NewState("s", "q", AllSources)
	assert.Nil(t, MergeState(s, State{}).BranchErrors)

	s = MergeState(s, State{BranchErrors: map[string]string{NodeVectorSearch: "timeout"}})
	s = MergeState(s, State{BranchErrors: map[string]string{NodeVectorSearch: "later"}})
	s = MergeState(s, State{Candidates: []core.Candidate{{ID: "1", Title: "One"}}})

	assert.Equal(t, map[string]string{NodeVectorSearch: "timeout"}, s.BranchErrors)
	assert.True(t, ResultFromState(s).Degraded())
}

func TestMergeContentCache(t *testing.T) {
	tests := []struct {
		name string
		old  retrieval.ContentCache
		new  retrieval.ContentCache
		want retrieval.ContentCache
	}{
		{
			name: "both nil",
			want: retrieval.ContentCache{},
		},
		{
			name: "disjoint",
			old:  retrieval.ContentCache{"1": entry("1", "a")},
			new:  retrieval.ContentCache{"2": entry("2", "b")},
			want: retrieval.ContentCache{"1": entry("1", "a"), "2": entry("2", "b")},
		},
		{
			name: "existing body wins",
			old:  retrieval.ContentCache{"1": entry("1", "a")},
			new:  retrieval.ContentCache{"1": entry("1", "b")},
			want: retrieval.ContentCache{"1": entry("1", "a")},
		},
		{
			name: "empty entry is replaced",
			old:  retrieval.ContentCache{"1": entry("1", "")},
			new:  retrieval.ContentCache{"1": entry("1", "b")},
			want: retrieval.ContentCache{"1": entry("1", "b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeContentCache(tt.old, tt.new))
		})
	}
}

func TestRoute(t *testing.T) {
	assert.Equal(t, []string{NodeQueryGeneration, NodeVectorSearch}, Route(State{Sources: AllSources}))
	assert.Equal(t, []string{NodeQueryGeneration}, Route(State{Sources: SourceConfluence}))
	assert.Equal(t, []string{NodeVectorSearch}, Route(State{Sources: SourceVector}))
	assert.Empty(t, Route(State{}))
}

func TestSources_String(t *testing.T) {
	assert.Equal(t, "confluence+vector", AllSources.String())
	assert.Equal(t, "vector", SourceVector.String())
	assert.Equal(t, "none", Sources(0).String())
}

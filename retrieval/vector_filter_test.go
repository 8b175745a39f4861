package retrieval

import (
	"testing"

	"github.com/poiesic/ragflow/core"
	"github.com/stretchr/testify/assert"
)

func TestVectorFilter_Filter(t *testing.T) {
	candidates := []core.Candidate{
		{ID: "1", Title: "1_One", Excerpt: "one", Score: 0.5},
		{ID: "1", Title: "1_One again", Excerpt: "dup", Score: 0.9},
		{Title: "Runbook", Excerpt: "runbook", Score: 0.7},
		{Title: "Runbook", Excerpt: "runbook dup", Score: 0.8},
		{ID: "2", Title: "2_Empty", Excerpt: "  ", Score: 1.0},
		{ID: "3", Title: "3_Three", Excerpt: "three", Score: 0.6},
	}

	got := NewVectorFilter().Filter(candidates)

	assert.Equal(t, []core.Candidate{
		{Title: "Runbook", Excerpt: "runbook", Score: 0.7},
		{ID: "3", Title: "3_Three", Excerpt: "three", Score: 0.6},
		{ID: "1", Title: "1_One", Excerpt: "one", Score: 0.5},
	}, got.Candidates)
	assert.True(t, got.Usage.IsZero())
}

func TestVectorFilter_Cap(t *testing.T) {
	candidates := []core.Candidate{
		{ID: "1", Excerpt: "a", Score: 1},
		{ID: "2", Excerpt: "b", Score: 3},
		{ID: "3", Excerpt: "c", Score: 2},
	}

	got := NewVectorFilter(WithMaxVectorCandidates(2)).Filter(candidates)
	assert.Equal(t, []string{"2", "3"}, ids(got.Candidates))

	got = NewVectorFilter(WithMaxVectorCandidates(0)).Filter(candidates)
	assert.Len(t, got.Candidates, 3)
}

func TestVectorFilter_Empty(t *testing.T) {
	got := NewVectorFilter().Filter(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got.Candidates)
}

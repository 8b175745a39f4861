package openai

import (
	"context"
	"testing"

	"github.com/poiesic/ragflow/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestQueryGenerator_GenerateQueries(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		textResponse("```json\n"+`{"queries": [
			{"cql": "siteSearch ~ \"DMS audit\"", "justification": "direct"},
			{"cql": "siteSearch ~ \"DMS audit\"", "justification": "duplicate"},
			{"cql": "  ", "justification": "blank"},
			{"cql": "siteSearch ~ \"DMS audit process\"", "justification": "process"},
		]}`+"\n```", 100, 40),
	}}
	cfg := ai.NewConfig(ai.WithPricing(1, 2))
	gen, err := NewQueryGenerator(model, cfg)
	require.NoError(t, err)

	got, err := gen.GenerateQueries(context.Background(), "How are things audited in DMS?")
	require.NoError(t, err)

	assert.Equal(t, []string{`siteSearch ~ "DMS audit"`, `siteSearch ~ "DMS audit process"`}, got.Queries)
	assert.Equal(t, []string{"direct", "process"}, got.Justifications)
	assert.Equal(t, 100, got.Usage.InputTokens)
	assert.Equal(t, 40, got.Usage.OutputTokens)
	assert.Equal(t, 140, got.Usage.TotalTokens)
	assert.InDelta(t, (100*1.0+40*2.0)/1e6, got.Usage.Cost, 1e-12)

	require.Len(t, model.calls, 1)
	assert.Equal(t, cfg.QueryModel, model.calls[0].Model)
	assert.True(t, model.calls[0].JSONMode)
}

func TestQueryGenerator_RetriesMalformedJSON(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		textResponse("not json", 10, 1),
		textResponse(`{"queries": [{"cql": "siteSearch ~ \"X\"", "justification": "j"}]}`, 10, 1),
	}}
	gen, err := NewQueryGenerator(model, ai.DefaultConfig())
	require.NoError(t, err)

	got, err := gen.GenerateQueries(context.Background(), "X?")
	require.NoError(t, err)
	assert.Len(t, got.Queries, 1)
	assert.Equal(t, 20, got.Usage.InputTokens, "usage of the failed attempt is kept")
	assert.Len(t, model.calls, 2)
}

func TestQueryGenerator_CapsQueries(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		textResponse(`{"queries": [
			{"cql": "a", "justification": ""}, {"cql": "b", "justification": ""},
			{"cql": "c", "justification": ""}, {"cql": "d", "justification": ""}]}`, 1, 1),
	}}
	gen, err := NewQueryGenerator(model, ai.NewConfig(ai.WithMaxQueries(3)))
	require.NoError(t, err)

	got, err := gen.GenerateQueries(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.Queries)
}

func TestQueryGenerator_Failures(t *testing.T) {
	t.Run("no queries", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{textResponse(`{"queries": []}`, 1, 1)}}
		gen, err := NewQueryGenerator(model, ai.DefaultConfig())
		require.NoError(t, err)

		_, err = gen.GenerateQueries(context.Background(), "q")
		assert.ErrorIs(t, err, ErrNoQueries)
	})

	t.Run("model error", func(t *testing.T) {
		model := &fakeModel{err: assert.AnError}
		gen, err := NewQueryGenerator(model, ai.DefaultConfig())
		require.NoError(t, err)

		_, err = gen.GenerateQueries(context.Background(), "q")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("persistent garbage", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentResponse{
			textResponse("x", 1, 1), textResponse("y", 1, 1), textResponse("z", 1, 1),
		}}
		gen, err := NewQueryGenerator(model, ai.DefaultConfig())
		require.NoError(t, err)

		_, err = gen.GenerateQueries(context.Background(), "q")
		assert.Error(t, err)
		assert.Len(t, model.calls, 3)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewQueryGenerator(nil, ai.DefaultConfig())
		assert.Error(t, err)
	})
}

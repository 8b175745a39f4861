// Package mock provides test double implementations of AI service interfaces.
//
// The mocks let tests run without external model services and give
// deterministic behavior.
//
// # Usage in Tests
//
//	// Judge that asks for page 42 once, then decides
//	judge := mock.NewMockRelevanceJudge(
//	    ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "42", Title: "Audit"}),
//	    ai.DecisionJudgment(`[{"page_id": "42"}]`, core.Usage{}),
//	)
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	// Check call counts
//	count := judge.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockQueryGenerator: Returns its configured queries
//   - MockRelevanceJudge: Replays its script, then fails with ErrScriptExhausted
//   - MockAnswerSynthesizer: Answers with the titles of the evidence it was given
//   - MockProvider: Aggregates the above; its judge always decides "[]"
package mock

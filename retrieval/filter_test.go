package retrieval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/ai/mock"
	bmock "github.com/poiesic/ragflow/backend/mock"
	"github.com/poiesic/ragflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCandidates = []core.Candidate{
	{ID: "1", Title: "One", Excerpt: "one", URL: "http://wiki/1", Score: 30},
	{ID: "2", Title: "Two", Excerpt: "two", URL: "http://wiki/2", Score: 20},
	{ID: "3", Title: "Three", Excerpt: "three", URL: "http://wiki/3", Score: 10},
}

func testFetcher() *bmock.MockFetcher {
	return bmock.NewMockFetcher(map[string]string{
		"1": "body one",
		"2": "body two",
		"3": "body three",
	})
}

func usage(in, out int) core.Usage {
	return core.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out, Cost: 0.001}
}

func newLoop(t *testing.T, judge ai.RelevanceJudge, fetcher *bmock.MockFetcher, opts ...Option) *FilterLoop {
	t.Helper()
	loop, err := NewFilterLoop(judge, fetcher, opts...)
	require.NoError(t, err)
	return loop
}

func TestNewFilterLoop_Validation(t *testing.T) {
	_, err := NewFilterLoop(nil, testFetcher())
	assert.ErrorIs(t, err, ErrJudgeRequired)

	_, err = NewFilterLoop(mock.NewMockRelevanceJudge(), nil)
	assert.ErrorIs(t, err, ErrFetcherRequired)
}

func TestFilterLoop_TerminationContract(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(usage(100, 10), ai.FetchRequest{ID: "1", Title: "One"}),
		ai.FetchJudgment(usage(200, 20), ai.FetchRequest{ID: "2", Title: "Two"}),
		ai.DecisionJudgment(`[{"page_id": "1", "title": "One"}]`, usage(300, 30)),
	)
	fetcher := testFetcher()

	result, err := newLoop(t, judge, fetcher).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, judge.CallCount())
	assert.Equal(t, 3, result.Rounds)
	assert.Equal(t, []string{"1"}, result.Decision.IDs())
	assert.Equal(t, 600, result.Usage.InputTokens)
	assert.Equal(t, 60, result.Usage.OutputTokens)
	assert.Equal(t, 660, result.Usage.TotalTokens)
	assert.InDelta(t, 0.003, result.Usage.Cost, 1e-12)
	assert.False(t, result.Skipped)
}

func TestFilterLoop_FetchesEachPageOnce(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}, ai.FetchRequest{ID: "2"}),
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "2"}, ai.FetchRequest{ID: "3"}, ai.FetchRequest{ID: "1"}),
		ai.DecisionJudgment(`[{"page_id": "1"}, {"page_id": "2"}, {"page_id": "3"}]`, core.Usage{}),
	)
	fetcher := testFetcher()

	result, err := newLoop(t, judge, fetcher).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, fetcher.CallCount())
	assert.Equal(t, 3, result.Fetches)
	for _, id := range []string{"1", "2", "3"} {
		assert.Equal(t, 1, fetcher.FetchCount(id), "page %s", id)
		assert.True(t, result.Contents.Has(id))
	}
}

func TestFilterLoop_ToolOutputsGrowBetweenRounds(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "2", Title: "Two"}),
		ai.DecisionJudgment(`[]`, core.Usage{}),
	)

	_, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "How?", testCandidates, nil)
	require.NoError(t, err)

	requests := judge.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, ai.NoToolOutputs, requests[0].ToolOutputs)
	assert.Equal(t, 1, requests[0].Round)
	assert.Equal(t, "How?", requests[0].UserQuery)
	assert.Equal(t, testCandidates, requests[0].Candidates)

	assert.Contains(t, requests[1].ToolOutputs, "body two")
	assert.Equal(t, 2, requests[1].Round)
}

// A response carrying both text and fetch requests ends the loop at once;
// the fetch requests are not executed.
func TestFilterLoop_TextWithFetchesTerminatesImmediately(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.NewJudgment(`[{"page_id": "1", "title": "One"}]`,
			[]ai.FetchRequest{{ID: "2"}, {ID: "3"}}, core.Usage{}),
	)
	fetcher := testFetcher()

	result, err := newLoop(t, judge, fetcher).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, judge.CallCount())
	assert.Equal(t, 1, result.Rounds)
	assert.Equal(t, []ai.FetchRequest{{ID: "2"}, {ID: "3"}}, result.IgnoredFetches)
	assert.Equal(t, 0, fetcher.FetchCount("2"))
	assert.Equal(t, 0, fetcher.FetchCount("3"))
	assert.Equal(t, 1, fetcher.FetchCount("1"), "decided pages are fetched directly")
}

func TestFilterLoop_DirectFetchBackfillsURL(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.DecisionJudgment(`[{"page_id": "2", "title": "Two"}]`, core.Usage{}),
	)

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)

	entry := result.Contents["2"]
	assert.Equal(t, "body two", entry.FullContent)
	assert.Equal(t, "http://wiki/2", entry.URL)
	assert.Equal(t, "Two", entry.Title)
}

func TestFilterLoop_FetchRoundBackfillsTitleAndURL(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "3"}),
		ai.DecisionJudgment(`[]`, core.Usage{}),
	)

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ContentEntry{ID: "3", Title: "Three", FullContent: "body three", URL: "http://wiki/3"}, result.Contents["3"])
}

func TestFilterLoop_SeedCacheIsReusedNotModified(t *testing.T) {
	seed := ContentCache{"1": {ID: "1", FullContent: "seeded"}}
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}, ai.FetchRequest{ID: "2"}),
		ai.DecisionJudgment(`[{"page_id": "1"}]`, core.Usage{}),
	)
	fetcher := testFetcher()

	result, err := newLoop(t, judge, fetcher).Run(context.Background(), "q", testCandidates, seed)
	require.NoError(t, err)

	assert.Equal(t, 0, fetcher.FetchCount("1"))
	assert.Equal(t, "seeded", result.Contents["1"].FullContent)
	assert.True(t, result.Contents.Has("2"))
	assert.Len(t, seed, 1)
	assert.Contains(t, judge.Requests()[0].ToolOutputs, "seeded")
}

func TestFilterLoop_FetchFailureIsSkipped(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "404"}, ai.FetchRequest{ID: "1"}),
		ai.DecisionJudgment(`[{"page_id": "1"}]`, core.Usage{}),
	)

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)
	assert.False(t, result.Contents.Has("404"))
	assert.True(t, result.Contents.Has("1"))
}

func TestFilterLoop_NoCandidatesSkipsJudge(t *testing.T) {
	judge := mock.NewMockRelevanceJudge()

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", nil, nil)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.NotNil(t, result.Decision)
	assert.True(t, result.Decision.IsEmpty())
	assert.Equal(t, 0, judge.CallCount())
	assert.Equal(t, 0, result.Rounds)
}

func TestFilterLoop_EmptyDecisionIsNotSkipped(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(ai.DecisionJudgment(`[]`, core.Usage{}))

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.True(t, result.Decision.IsEmpty())
}

func TestFilterLoop_ParseFailure(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(ai.DecisionJudgment("pages 1 and 2 look relevant", core.Usage{}))

	_, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	assert.ErrorIs(t, err, core.ErrDecisionParse)
}

func TestFilterLoop_RepairsDecision(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(ai.DecisionJudgment("```json\n[{\"page_id\": \"2\", \"title\": \"Two\",},]\n```", core.Usage{}))

	result, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, result.Decision.IDs())
}

func TestFilterLoop_MaxRounds(t *testing.T) {
	judge := &mock.MockRelevanceJudge{
		JudgeFunc: func(ctx context.Context, req ai.JudgmentRequest) (*ai.Judgment, error) {
			return ai.FetchJudgment(usage(1, 1), ai.FetchRequest{ID: "1"}), nil
		},
	}

	result, err := newLoop(t, judge, testFetcher(), WithMaxRounds(3)).Run(context.Background(), "q", testCandidates, nil)
	assert.ErrorIs(t, err, ErrNonConvergence)
	assert.Equal(t, 3, judge.CallCount())
	require.NotNil(t, result)
	assert.Equal(t, 3, result.Rounds)
	assert.Equal(t, 3, result.Usage.InputTokens)
}

func TestFilterLoop_UnboundedRounds(t *testing.T) {
	script := make([]*ai.Judgment, 0, 20)
	for range 19 {
		script = append(script, ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}))
	}
	script = append(script, ai.DecisionJudgment(`[]`, core.Usage{}))
	judge := mock.NewMockRelevanceJudge(script...)
	fetcher := testFetcher()

	// Re-requesting a cached page is served from the cache and does not count
	// as a stall.
	result, err := newLoop(t, judge, fetcher, WithMaxRounds(0)).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Rounds)
	assert.Equal(t, 1, fetcher.FetchCount("1"))
}

func TestFilterLoop_UncappedRepeatsStopOnDeadline(t *testing.T) {
	judge := &mock.MockRelevanceJudge{
		JudgeFunc: func(ctx context.Context, req ai.JudgmentRequest) (*ai.Judgment, error) {
			time.Sleep(time.Millisecond)
			return ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}), nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	result, err := newLoop(t, judge, testFetcher(), WithMaxRounds(0)).Run(ctx, "q", testCandidates, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, result.Rounds, 1)
}

func TestFilterLoop_StalledJudge(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}),
		ai.FetchJudgment(core.Usage{}),
		ai.FetchJudgment(core.Usage{}),
		ai.DecisionJudgment(`[]`, core.Usage{}),
	)

	_, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	assert.ErrorIs(t, err, ErrNonConvergence)
	assert.Equal(t, 3, judge.CallCount())
}

func TestFilterLoop_JudgeError(t *testing.T) {
	judge := mock.NewMockRelevanceJudge()

	_, err := newLoop(t, judge, testFetcher()).Run(context.Background(), "q", testCandidates, nil)
	assert.ErrorIs(t, err, mock.ErrScriptExhausted)
}

func TestFilterLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	judge := &mock.MockRelevanceJudge{
		JudgeFunc: func(_ context.Context, _ ai.JudgmentRequest) (*ai.Judgment, error) {
			cancel()
			return ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}), nil
		},
	}

	_, err := newLoop(t, judge, testFetcher()).Run(ctx, "q", testCandidates, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, judge.CallCount())
}

type recordingMonitor struct {
	mu      sync.Mutex
	events  []string
	outcome *FilterResult
	err     error
}

func (m *recordingMonitor) record(e string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *recordingMonitor) Start(_ string, _ int)            { m.record("start") }
func (m *recordingMonitor) RoundStarted(_ int)               { m.record("round") }
func (m *recordingMonitor) Judged(_ int, j *ai.Judgment)     { m.record("judged:" + j.Kind.String()) }
func (m *recordingMonitor) Fetched(id string, err error)     { m.record("fetched:" + id) }
func (m *recordingMonitor) FetchSkipped(id string)           { m.record("skipped:" + id) }
func (m *recordingMonitor) Finish(r *FilterResult, err error) { m.outcome, m.err = r, err; m.record("finish") }

func TestFilterLoop_Monitor(t *testing.T) {
	judge := mock.NewMockRelevanceJudge(
		ai.FetchJudgment(core.Usage{}, ai.FetchRequest{ID: "1"}),
		ai.DecisionJudgment(`[{"page_id": "1"}]`, core.Usage{}),
	)
	monitor := &recordingMonitor{}

	result, err := newLoop(t, judge, testFetcher(), WithMonitor(monitor)).Run(context.Background(), "q", testCandidates, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start",
		"round", "judged:" + ai.JudgmentFetch.String(), "fetched:1",
		"round", "judged:" + ai.JudgmentDecision.String(), "skipped:1",
		"finish",
	}, monitor.events)
	assert.Same(t, result, monitor.outcome)
	assert.NoError(t, monitor.err)
}

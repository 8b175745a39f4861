package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/retrieval"
)

// traceMonitor prints relevance filter progress.
type traceMonitor struct {
	mu sync.Mutex
	w  io.Writer
}

var _ retrieval.FilterMonitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) printf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, format, args...)
}

func (m *traceMonitor) Start(query string, candidates int) {
	m.printf("filter: %d candidates for %q\n", candidates, query)
}

func (m *traceMonitor) RoundStarted(round int) {
	m.printf("filter: round %d\n", round)
}

func (m *traceMonitor) Judged(round int, judgment *ai.Judgment) {
	if judgment.Kind == ai.JudgmentFetch {
		m.printf("filter: round %d requested %d pages\n", round, len(judgment.Fetches))
		return
	}
	m.printf("filter: round %d decided\n", round)
}

func (m *traceMonitor) Fetched(id string, err error) {
	if err != nil {
		m.printf("filter: fetch %s failed: %v\n", id, err)
		return
	}
	m.printf("filter: fetched %s\n", id)
}

func (m *traceMonitor) FetchSkipped(id string) {
	m.printf("filter: %s already cached\n", id)
}

func (m *traceMonitor) Finish(result *retrieval.FilterResult, err error) {
	if err != nil {
		m.printf("filter: failed: %v\n", err)
		return
	}
	m.printf("filter: kept %d pages after %d rounds and %d fetches\n",
		len(result.Decision.Pages), result.Rounds, result.Fetches)
}

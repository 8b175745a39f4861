package retrieval

import "github.com/poiesic/ragflow/ai"

// FilterMonitor observes a FilterLoop run. Implementations must be safe for
// use by concurrent runs.
type FilterMonitor interface {
	Start(query string, candidates int)
	RoundStarted(round int)
	Judged(round int, judgment *ai.Judgment)
	Fetched(id string, err error)
	FetchSkipped(id string)
	Finish(result *FilterResult, err error)
}

type noopMonitor struct{}

var _ FilterMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)          {}
func (n *noopMonitor) RoundStarted(_ int)             {}
func (n *noopMonitor) Judged(_ int, _ *ai.Judgment)   {}
func (n *noopMonitor) Fetched(_ string, _ error)      {}
func (n *noopMonitor) FetchSkipped(_ string)          {}
func (n *noopMonitor) Finish(_ *FilterResult, _ error) {}

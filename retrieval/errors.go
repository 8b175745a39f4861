package retrieval

import "errors"

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrJudgeRequired is returned when a relevance judge is not provided.
	ErrJudgeRequired = errors.New("relevance judge required")

	// ErrFetcherRequired is returned when a document fetcher is not provided.
	ErrFetcherRequired = errors.New("document fetcher required")

	// ErrNonConvergence is returned when the judge does not reach a decision
	// within the configured number of rounds.
	ErrNonConvergence = errors.New("relevance filtering did not converge")

	// ErrUnknownJudgment is returned for judgments of an unrecognized kind.
	ErrUnknownJudgment = errors.New("unknown judgment kind")
)

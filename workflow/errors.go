package workflow

import "errors"

var (
	// ErrEmptyQuery is returned when a run is started without a question.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoSources is returned when neither a searcher nor a vector searcher
	// is configured.
	ErrNoSources = errors.New("no retrieval source configured")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrFetcherRequired is returned when a searcher is configured without a
	// document fetcher.
	ErrFetcherRequired = errors.New("document fetcher required")

	// ErrBranchFailed is returned when no evidence was kept and at least one
	// retrieval branch failed, so an empty answer would hide the failure.
	ErrBranchFailed = errors.New("retrieval branch failed")
)

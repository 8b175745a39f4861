package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingCount is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)

package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryGenerator turns a user question into search-backend queries.
// Implementations must be thread-safe for concurrent use.
type QueryGenerator interface {
	// GenerateQueries returns an ordered list of queries for the search
	// backend. Justifications are informational only.
	GenerateQueries(ctx context.Context, userQuery string) (*GeneratedQueries, error)
}

// RelevanceJudge decides which candidates are relevant to a question.
// A single call is one round of the filter conversation; the judge may ask
// for full page bodies instead of deciding.
type RelevanceJudge interface {
	Judge(ctx context.Context, req JudgmentRequest) (*Judgment, error)
}

// AnswerSynthesizer writes the final answer from filtered evidence.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*Answer, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// The services it returns share configuration and are safe for concurrent use.
type AIProvider interface {
	Embedder() Embedder
	QueryGenerator() QueryGenerator
	RelevanceJudge() RelevanceJudge
	AnswerSynthesizer() AnswerSynthesizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

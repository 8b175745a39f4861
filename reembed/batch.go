package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/ingestion"
	"github.com/poiesic/ragflow/storage"
)

// BatchProcessor handles embedding generation for batches of documents.
type BatchProcessor struct {
	repo     storage.DocumentRepository
	embedder ai.Embedder
	retry    RetryPolicy
}

// maxRetryDelay caps the backoff between embedding attempts.
const maxRetryDelay = 30 * time.Second

// NewBatchProcessor creates a batch processor that tries each embedding
// call up to maxAttempts times, backing off from baseDelay.
func NewBatchProcessor(repo storage.DocumentRepository, embedder ai.Embedder, maxAttempts int, baseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		retry: RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   baseDelay,
			MaxDelay:    maxRetryDelay,
		},
	}
}

// Process embeds a batch of documents and writes the normalized vectors back.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = ingestion.EmbeddingText(doc)
	}

	var embeddings [][]float32
	err := bp.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.retry.MaxAttempts, err)
	}

	if len(embeddings) != len(docs) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(docs), len(embeddings))
	}

	for i := range docs {
		docs[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if _, err := bp.repo.UpdateDocuments(ctx, docs...); err != nil {
		return fmt.Errorf("failed to update documents: %w", err)
	}
	return nil
}

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

// enricher adds derived data to stored documents.
type enricher interface {
	process(ctx context.Context, ids ...core.ID) error
}

// embeddingProcessor writes normalized vectors for stored documents.
type embeddingProcessor struct {
	documentRepository storage.DocumentRepository
	embedder           ai.Embedder
	logger             *slog.Logger
}

var _ enricher = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(documentRepository storage.DocumentRepository, embedder ai.Embedder, logger *slog.Logger) (enricher, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		documentRepository: documentRepository,
		embedder:           embedder,
		logger:             logger.With("processor", "embeddings"),
	}, nil
}

// EmbeddingText is the text embedded for a document.
func EmbeddingText(doc *core.Document) string {
	return doc.Title + "\n\n" + doc.Contents
}

// process generates normalized embeddings for the specified documents.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...core.ID) error {
	ep.logger.Debug("processing documents for embeddings", "documents", len(ids))

	slices.Sort(ids)

	docs, err := ep.documentRepository.GetDocuments(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving documents", "err", err)
		return err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = EmbeddingText(doc)
	}

	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(docs) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(docs), len(embeddings))
	}

	for i := range embeddings {
		docs[i].Vector = core.NormalizeVector(embeddings[i])
	}

	_, err = ep.documentRepository.UpdateDocuments(ctx, docs...)
	return err
}

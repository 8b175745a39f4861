package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

// DefaultBatchSize is the number of documents embedded per request.
const DefaultBatchSize = 16

// Pipeline orchestrates the ingestion and embedding of documents.
type Pipeline struct {
	documentRepository storage.DocumentRepository
	embeddingPool      *ants.Pool
	embeddingProc      enricher
	batchSize          int
	raw                bool
	logger             *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithRawContent stores page content as given, skipping CleanContent.
func WithRawContent() Option {
	return func(p *Pipeline) error {
		p.raw = true
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(documentRepository storage.DocumentRepository, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documentRepository: documentRepository,
		embeddingPool:      embeddingPool,
		batchSize:          DefaultBatchSize,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied so it gets the final logger
	embeddingProc, err := newEmbeddingProcessor(documentRepository, provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Report summarizes an ingestion run.
type Report struct {
	// Stored is the number of documents written to the store.
	Stored int
	// Embedded is the number of stored documents that received a vector.
	Embedded int
	// Skipped is the number of documents rejected by validation.
	Skipped int
}

// Ingest cleans, stores and embeds docs. Invalid documents are skipped.
// Re-ingesting a page replaces the stored copy. Ingest waits for all
// embedding batches; failed batches are reported in the returned error and
// their documents stay stored without a vector.
func (p *Pipeline) Ingest(ctx context.Context, docs ...*core.Document) (*Report, error) {
	report := &Report{}

	valid := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			report.Skipped++
			continue
		}
		prepared := *doc
		prepared.Vector = nil
		prepared.Title = strings.TrimSpace(prepared.Title)
		if !p.raw {
			prepared.Contents = CleanContent(prepared.Contents)
		}
		if err := core.ValidateDocument(&prepared); err != nil {
			p.logger.Warn("skipping document", "page_id", prepared.PageID, "title", prepared.Title, "err", err)
			report.Skipped++
			continue
		}
		valid = append(valid, &prepared)
	}
	if len(valid) == 0 {
		return report, nil
	}

	added, err := p.documentRepository.AddDocuments(ctx, valid...)
	if err != nil {
		return report, err
	}
	report.Stored = len(added)

	ids := make([]core.ID, len(added))
	for i, doc := range added {
		ids[i] = doc.Id
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for batch := range slices.Chunk(ids, p.batchSize) {
		wg.Add(1)
		submitErr := p.embeddingPool.Submit(func() {
			defer wg.Done()
			err := p.embeddingProc.process(ctx, batch...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("error processing embeddings", "documents", len(batch), "err", err)
				errs = append(errs, err)
				return
			}
			report.Embedded += len(batch)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	p.logger.Info("ingestion complete",
		"stored", report.Stored,
		"embedded", report.Embedded,
		"skipped", report.Skipped)
	return report, errors.Join(errs...)
}

// IngestDir ingests every "<page_id>_<title>.txt" file in dir.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*Report, error) {
	docs, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("ingesting directory", "dir", dir, "files", len(docs))
	return p.Ingest(ctx, docs...)
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

// Config tunes a reembedding run.
type Config struct {
	BatchSize      int // documents per embedding call
	ReportInterval int // documents between progress lines
	MaxRetries     int // attempts per embedding call, including the first
	RetryDelay     time.Duration
	MissingOnly    bool // skip documents that already carry a vector
}

// DefaultConfig embeds 100 documents per call with three attempts.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder recomputes the vectors of stored documents, for example after
// the embedding model changed.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *DocumentIterator
}

// NewReembedder writes progress lines to progress, which may be nil.
func NewReembedder(repo storage.DocumentRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewDocumentIterator(repo, config.BatchSize, config.MissingOnly),
	}
}

// Run reembeds every selected document and returns how many were processed.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	docs, err := r.iterator.Documents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	total := len(docs)
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents to reembed (0 documents)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.each(ctx, docs, func(batch []*core.Document) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f docs/sec)\n",
		processed, elapsed.Round(time.Millisecond), rate)

	return processed, nil
}

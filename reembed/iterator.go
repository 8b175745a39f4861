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

	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
)

const (
	// DefaultBatchSize is the default number of documents handed to each batch
	DefaultBatchSize = 100
)

// DocumentIterator iterates over stored documents in batches.
type DocumentIterator struct {
	repo        storage.DocumentRepository
	batchSize   int
	missingOnly bool
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents in each batch (defaults when <= 0)
// missingOnly: skip documents that already carry a vector
func NewDocumentIterator(repo storage.DocumentRepository, batchSize int, missingOnly bool) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DocumentIterator{
		repo:        repo,
		batchSize:   batchSize,
		missingOnly: missingOnly,
	}
}

// Documents returns the documents the iterator will visit, in ID order.
func (it *DocumentIterator) Documents(ctx context.Context) ([]*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := it.repo.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if !it.missingOnly {
		return docs, nil
	}

	pending := docs[:0]
	for _, doc := range docs {
		if len(doc.Vector) == 0 {
			pending = append(pending, doc)
		}
	}
	return pending, nil
}

// ForEach iterates over the documents, calling fn for each batch.
// Iteration stops on the first error from fn or when all documents are
// visited. Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	docs, err := it.Documents(ctx)
	if err != nil {
		return err
	}
	return it.each(ctx, docs, fn)
}

func (it *DocumentIterator) each(ctx context.Context, docs []*core.Document, fn func([]*core.Document) error) error {
	for i := 0; i < len(docs); i += it.batchSize {
		end := min(i+it.batchSize, len(docs))

		if err := fn(docs[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

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

package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragflow/backend"
	"github.com/poiesic/ragflow/storage"
)

// Fetcher serves full document bodies from the local store.
type Fetcher struct {
	repository storage.DocumentRepository
	logger     *slog.Logger
}

var _ backend.DocumentFetcher = (*Fetcher)(nil)

func NewFetcher(repository storage.DocumentRepository) (*Fetcher, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	return &Fetcher{
		repository: repository,
		logger:     slog.Default().With("component", "local-fetcher"),
	}, nil
}

// FetchDocument returns the stored body of the page with the given id,
// headed by its stored title.
func (f *Fetcher) FetchDocument(ctx context.Context, id, title string) (string, error) {
	doc, err := f.repository.GetDocumentByPageID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: page %s (%s)", backend.ErrDocumentNotFound, id, title)
	}
	if err != nil {
		f.logger.Error("error loading document", "page_id", id, "err", err)
		return "", err
	}
	return "# " + doc.Title + "\n\n" + doc.Contents, nil
}

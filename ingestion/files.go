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

package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/poiesic/ragflow/core"
)

// FileExtension is the extension of page files read by IngestDir.
const FileExtension = ".txt"

var fileNamePattern = regexp.MustCompile(`^(\d+)_(.+)$`)

// ParseFileName splits a "<page_id>_<title>.txt" file name. Names without a
// numeric id prefix yield an empty page id and the whole stem as title.
func ParseFileName(name string) (pageID, title string) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := fileNamePattern.FindStringSubmatch(stem); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", strings.TrimSpace(stem)
}

// FileName renders the file name a document is exported under.
func FileName(doc *core.Document) string {
	return doc.SourceTitle() + FileExtension
}

// ReadDocumentFile loads a page file into an unsaved document.
func ReadDocumentFile(path string) (*core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pageID, title := ParseFileName(path)
	return &core.Document{
		PageID:   pageID,
		Title:    title,
		Contents: string(data),
	}, nil
}

// ReadDir loads every page file in dir, ordered by file name.
func ReadDir(dir string) ([]*core.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	docs := make([]*core.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), FileExtension) {
			continue
		}
		doc, err := ReadDocumentFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

package ingestion

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ragflow/ai/mock"
	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
	"github.com/poiesic/ragflow/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) storage.DocumentRepository {
	t.Helper()
	repo, b, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		b.Close()
	})
	return repo
}

func newTestPipeline(t *testing.T, repo storage.DocumentRepository, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	provider := mock.NewMockProviderWithServices(embedder, nil, nil, nil)
	p, err := NewPipeline(repo, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNewPipeline(t *testing.T) {
	repo := setupRepository(t)

	_, err := NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewPipeline(repo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	p, err := NewPipeline(repo, mock.NewMockProvider(), WithPoolSize(0), WithBatchSize(0), WithLogger(nil))
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, 1, p.batchSize)
	assert.Equal(t, 1, p.embeddingPool.Cap())
}

func TestPipeline_Ingest(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 8
	p := newTestPipeline(t, repo, embedder, WithBatchSize(2))

	docs := []*core.Document{
		{PageID: "42", Title: "Audit process", Contents: "## Steps\n\n**Audits** run quarterly. 🚀"},
		{PageID: "43", Title: "Release notes", Contents: "Version 2 ships."},
		{PageID: "44", Title: "Hiring", Contents: "Interview loops."},
		{PageID: "45", Title: "Empty", Contents: "🚀🚀"},
		nil,
	}

	report, err := p.Ingest(context.Background(), docs...)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 3, report.Embedded)
	assert.Equal(t, 2, report.Skipped)

	stored, err := repo.GetDocumentByPageID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Steps\nAudits run quarterly.", stored.Contents)
	require.Len(t, stored.Vector, 8)
	assert.InDelta(t, 1.0, vectorNorm(stored.Vector), 1e-5)

	// The caller's documents are left untouched.
	assert.Equal(t, "## Steps\n\n**Audits** run quarterly. 🚀", docs[0].Contents)
	assert.Nil(t, docs[0].Vector)

	// Two batches of two and one.
	assert.Equal(t, 2, embedder.CallCount())
}

func TestPipeline_Ingest_Upsert(t *testing.T) {
	repo := setupRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())

	_, err := p.Ingest(context.Background(), &core.Document{PageID: "42", Title: "Audit", Contents: "old"})
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), &core.Document{PageID: "42", Title: "Audit", Contents: "new"})
	require.NoError(t, err)

	count, err := repo.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repo.GetDocumentByPageID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Contents)
}

func TestPipeline_Ingest_RawContent(t *testing.T) {
	repo := setupRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder(), WithRawContent())

	_, err := p.Ingest(context.Background(), &core.Document{PageID: "1", Title: "t", Contents: "**kept**"})
	require.NoError(t, err)

	stored, err := repo.GetDocumentByPageID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "**kept**", stored.Contents)
}

func TestPipeline_Ingest_EmbeddingFailure(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("embedding service unavailable")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 4)
		}
		return out, nil
	}
	p := newTestPipeline(t, repo, embedder, WithBatchSize(1), WithPoolSize(1))

	report, err := p.Ingest(context.Background(),
		&core.Document{PageID: "1", Title: "a", Contents: "a"},
		&core.Document{PageID: "2", Title: "b", Contents: "b"},
	)
	require.Error(t, err)
	assert.Equal(t, 2, report.Stored)
	assert.Equal(t, 1, report.Embedded)

	docs, err := repo.ListDocuments(context.Background())
	require.NoError(t, err)
	withVector := 0
	for _, d := range docs {
		if len(d.Vector) > 0 {
			withVector++
		}
	}
	assert.Equal(t, 1, withVector)
}

func TestPipeline_Ingest_EmbeddingMismatch(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{}, nil
	}
	p := newTestPipeline(t, repo, embedder)

	_, err := p.Ingest(context.Background(), &core.Document{PageID: "1", Title: "a", Contents: "a"})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestPipeline_IngestDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"3014164585_DMS Core Service.txt": "The DMS core service stores documents.",
		"notes.txt":                       "Loose notes.",
		"image.png":                       "not text",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o700))

	repo := setupRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())

	report, err := p.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored)

	doc, err := repo.GetDocumentByPageID(context.Background(), "3014164585")
	require.NoError(t, err)
	assert.Equal(t, "DMS Core Service", doc.Title)
	assert.Equal(t, "3014164585_DMS Core Service", doc.SourceTitle())

	_, err = p.IngestDir(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name, pageID, title string
	}{
		{"3014164585_DMS Core Service.txt", "3014164585", "DMS Core Service"},
		{"/tmp/docs/42_Audit_process.txt", "42", "Audit_process"},
		{"notes.txt", "", "notes"},
		{"v2_release.txt", "", "v2_release"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pageID, title := ParseFileName(tt.name)
			assert.Equal(t, tt.pageID, pageID)
			assert.Equal(t, tt.title, title)
		})
	}

	assert.Equal(t, "42_Audit.txt", FileName(&core.Document{PageID: "42", Title: "Audit"}))
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"headers", "# Title\n### Sub", "Title\nSub"},
		{"emphasis", "**bold** and *italic*", "bold and italic"},
		{"bullets", "- one\n* two\n• three", "one\ntwo\nthree"},
		{"rules", "above\n---\nbelow", "above\nbelow"},
		{"emoji", "ship it 🚀✅ now", "ship it now"},
		{"spaces", "a  \t b", "a b"},
		{"blank lines", "a\n\n\n\nb", "a\nb"},
		{"compatibility forms", "ﬁle", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanContent(tt.in))
		})
	}
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

package badger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragflow/core"
	"github.com/poiesic/ragflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(nil, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func seedDocuments(t *testing.T, repo storage.DocumentRepository, vectors map[string][]float32) {
	t.Helper()
	docs := make([]*core.Document, 0, len(vectors))
	for pageID, vector := range vectors {
		docs = append(docs, &core.Document{
			PageID:   pageID,
			Title:    "page " + pageID,
			Contents: "contents of " + pageID,
			Vector:   vector,
		})
	}
	_, err := repo.AddDocuments(context.Background(), docs...)
	require.NoError(t, err)
}

func TestFindSimilar_NoDocuments(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilar(context.Background(), []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_InvalidLimit(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.FindSimilar(context.Background(), []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFindSimilar_OrderingAndThreshold(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	seedDocuments(t, repo, map[string][]float32{
		"1": {1.0, 0.0, 0.0}, // identical to query
		"2": {0.9, 0.1, 0.0},
		"3": {0.3, 0.7, 0.0},
		"4": nil, // not embedded, skipped
	})

	ctx := context.Background()
	query := []float32{1.0, 0.0, 0.0}

	results, err := backend.FindSimilar(ctx, query, 0.8, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].Document.PageID)
	assert.Equal(t, "2", results[1].Document.PageID)

	results, err = backend.FindSimilar(ctx, query, 0.2, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
}

func TestFindSimilar_LimitResults(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	vectors := make(map[string][]float32)
	for i := 0; i < 10; i++ {
		vectors[fmt.Sprintf("%d", i)] = []float32{0.9, 0.1, 0.0}
	}
	seedDocuments(t, repo, vectors)

	results, err := backend.FindSimilar(context.Background(), []float32{1.0, 0.0, 0.0}, 0.5, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilar_Cancelled(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()
	seedDocuments(t, repo, map[string][]float32{"1": {1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = backend.FindSimilar(ctx, []float32{1}, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := storeLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Errorf("compaction failed: %s\n", "disk full")
	l.Warningf("slow write")
	l.Infof("replaying %d entries", 3)

	out := buf.String()
	assert.Contains(t, out, `level=ERROR msg="compaction failed: disk full"`)
	assert.Contains(t, out, `level=WARN msg="slow write"`)
	assert.Contains(t, out, `level=DEBUG msg="replaying 3 entries"`)
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return assert.AnError
		})
		assert.Equal(t, assert.AnError, err)
	})
}

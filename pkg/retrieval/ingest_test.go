package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/datachat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func newTestIngester(t *testing.T, e Embedder, s Store) *Ingester {
	t.Helper()
	ing, err := NewIngester(IngesterConfig{
		Logger:    logger.Discard(),
		Clock:     clockwork.NewFakeClock(),
		Embedder:  e,
		Store:     s,
		ChunkSize: 100,
		Overlap:   10,
	})
	require.NoError(t, err)
	t.Cleanup(ing.Close)
	return ing
}

func TestLocalSource_LoadsMarkdownRecursively(t *testing.T) {
	t.Parallel()

	dir := writeDocs(t, map[string]string{
		"policy.md":        "# Refunds",
		"nested/faq.MD":    "# FAQ",
		"notes.txt":        "ignored",
		"nested/deep/a.md": "deep",
	})

	docs, err := LocalSource{Dir: dir}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	names := map[string]bool{}
	for _, d := range docs {
		names[d.Filename] = true
		assert.True(t, strings.HasPrefix(d.Source, dir))
	}
	assert.Equal(t, map[string]bool{"policy.md": true, "faq.MD": true, "a.md": true}, names)
}

func TestLocalSource_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := LocalSource{Dir: filepath.Join(t.TempDir(), "nope")}.Documents(context.Background())
	require.Error(t, err)
}

func TestIngester_IngestAndReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	long := strings.Repeat("Refunds are processed within five days. ", 8)
	dir := writeDocs(t, map[string]string{
		"refunds.md":  long,
		"shipping.md": "We ship worldwide.",
	})
	store := newTestStore(t)
	ing := newTestIngester(t, &fakeEmbedder{}, store)

	stats, err := ing.Ingest(ctx, LocalSource{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Greater(t, stats.Chunks, 2)
	assert.Equal(t, 0, stats.Replaced)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, n)

	// Re-ingesting replaces rather than duplicates.
	again, err := ing.Ingest(ctx, LocalSource{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, again.Replaced)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, n)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sources[filepath.Join(dir, "shipping.md")])
}

func TestIngester_EmbedFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := writeDocs(t, map[string]string{"a.md": "alpha"})
	store := newTestStore(t)
	ing := newTestIngester(t, &fakeEmbedder{err: errors.New("ollama down")}, store)

	_, err := ing.Ingest(ctx, LocalSource{Dir: dir})
	require.ErrorContains(t, err, "ollama down")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewIngester_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewIngester(IngesterConfig{Logger: logger.Discard()})
	require.Error(t, err)
}

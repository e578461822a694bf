package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/core"
	"delayrisk/internal"
)

func newTestStore(t *testing.T) *BundleStore {
	t.Helper()
	store, err := NewBundleStore(filepath.Join(t.TempDir(), "models"), internal.NewNopLogger())
	require.NoError(t, err)
	return store
}

func bundleFiles() map[string][]byte {
	return map[string][]byte{
		"model.json":       []byte(`{"format":"x"}`),
		"run_summary.json": []byte(`{}`),
		"report.md":        []byte("# Run"),
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteBundle_WritesEveryFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path, err := store.WriteBundle(ctx, core.RunID("run-1"), bundleFiles())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), "run-1"), path)
	assert.ElementsMatch(t, []string{"model.json", "run_summary.json", "report.md"}, dirEntries(t, path))

	data, err := store.ReadFile(ctx, filepath.Join(path, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Run", string(data))
	assert.Equal(t, []string{"run-1"}, dirEntries(t, store.BasePath()), "no staging directory remains")
}

func TestWriteBundle_NeverOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path, err := store.WriteBundle(ctx, core.RunID("run-1"), bundleFiles())
	require.NoError(t, err)

	_, err = store.WriteBundle(ctx, core.RunID("run-1"), map[string][]byte{"model.json": []byte("new")})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrArtifactExists)
	assert.ErrorIs(t, err, core.ErrArtifactIO)

	data, err := os.ReadFile(filepath.Join(path, "model.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"format":"x"}`, string(data))
}

func TestWriteBundle_FailureLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	files := bundleFiles()
	files["../escape"] = []byte("x")
	_, err := store.WriteBundle(context.Background(), core.RunID("run-2"), files)
	assert.ErrorIs(t, err, core.ErrArtifactIO)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.WriteBundle(cancelled, core.RunID("run-3"), bundleFiles())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, dirEntries(t, store.BasePath()))
}

func TestWriteBundle_RejectsBadRunIDs(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []core.RunID{"", "../x", ".hidden"} {
		_, err := store.WriteBundle(context.Background(), id, bundleFiles())
		assert.ErrorIs(t, err, core.ErrArtifactIO, string(id))
	}
}

func TestLatestBundle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LatestBundle(ctx)
	assert.ErrorIs(t, err, core.ErrArtifactIO)

	first := core.NewRunID()
	second := core.NewRunID()
	for _, id := range []core.RunID{second, first} {
		_, err := store.WriteBundle(ctx, id, bundleFiles())
		require.NoError(t, err)
	}

	latest, err := store.LatestBundle(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), second.String()), latest)

	ids, err := store.ListBundles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.RunID{first, second}, ids)
}

func TestCleanupStaging(t *testing.T) {
	store := newTestStore(t)
	stale := filepath.Join(store.BasePath(), stagingPrefix+"run-9-123")
	require.NoError(t, os.Mkdir(stale, 0o700))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := store.CleanupStaging(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
}

func TestReadFile_Missing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ReadFile(context.Background(), filepath.Join(store.BasePath(), "nope", "model.json"))
	assert.ErrorIs(t, err, core.ErrArtifactIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

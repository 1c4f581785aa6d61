package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoos/supplier-scout/internal/model"
)

func TestDirSnapshotStore_KeyedLookup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "塑料瓶-p1.html"), []byte("<html>keyed</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot.html"), []byte("<html>shared</html>"), 0o644))

	store := NewDirSnapshotStore(dir)

	body, path, err := store.Lookup("塑料瓶", 1)
	require.NoError(t, err)
	assert.Contains(t, string(body), "keyed")
	assert.Contains(t, path, "塑料瓶-p1.html")

	// No per-query capture for page 2: falls back to the shared snapshot.
	body, path, err = store.Lookup("塑料瓶", 2)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shared")
	assert.Contains(t, path, "snapshot.html")
}

func TestDirSnapshotStore_Missing(t *testing.T) {
	store := NewDirSnapshotStore(t.TempDir())
	_, _, err := store.Lookup("anything", 1)
	assert.Error(t, err)
}

func TestSnapshotSlug(t *testing.T) {
	assert.Equal(t, "塑料瓶", snapshotSlug("塑料瓶"))
	assert.Equal(t, "plastic-bottle", snapshotSlug("Plastic  Bottle "))
	assert.Equal(t, "oem-加工", snapshotSlug("OEM / 加工"))
}

func TestSnapshotFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot.html"), []byte("<html>demo</html>"), 0o644))

	f := NewSnapshotFetcher(NewDirSnapshotStore(dir))
	q := model.DefaultQuery("widgets")
	q.Online = false

	doc, err := f.Fetch(context.Background(), q, 1)
	require.NoError(t, err)
	assert.Equal(t, model.FetchModeOffline, doc.Mode)
	assert.Contains(t, string(doc.Body), "demo")
}

func TestSnapshotFetcher_MissingIsNotFound(t *testing.T) {
	f := NewSnapshotFetcher(NewDirSnapshotStore(t.TempDir()))
	_, err := f.Fetch(context.Background(), model.DefaultQuery("widgets"), 1)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	return store
}

func TestNamespace_PutGetRoundTrip(t *testing.T) {
	store := openStore(t, t.TempDir())
	ns := store.Namespace("jobs", "json")

	_, ok := ns.Get("missing")
	assert.False(t, ok)

	require.NoError(t, ns.Put("k1", []byte(`{"job_id":7}`)))
	got, ok := ns.Get("k1")
	require.True(t, ok)
	assert.Equal(t, `{"job_id":7}`, string(got))

	require.NoError(t, ns.Put("k1", []byte(`{"job_id":9}`)))
	got, ok = ns.Get("k1")
	require.True(t, ok)
	assert.Equal(t, `{"job_id":9}`, string(got))
}

func TestNamespace_PutLeavesNoTempFiles(t *testing.T) {
	store := openStore(t, t.TempDir())
	ns := store.Namespace("jobs", "json")
	require.NoError(t, ns.Put("k1", []byte("v")))

	entries, err := os.ReadDir(filepath.Join(store.Root(), "jobs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), tmpSuffix))
	assert.Equal(t, EntryFileName("k1", "json"), entries[0].Name())
}

func TestJobCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := ContentKey(strings.Repeat("ab", 32))

	first := openStore(t, dir).Jobs()
	require.NoError(t, first.Store(key, Entry{JobID: 7, SubmissionID: 42}))

	second := openStore(t, dir).Jobs()
	entry, ok := second.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, int64(7), entry.JobID)
	assert.Equal(t, int64(42), entry.SubmissionID)
	assert.False(t, entry.StoredAt.IsZero())
}

func TestJobCache_CorruptEntryIsMiss(t *testing.T) {
	store := openStore(t, t.TempDir())
	key := ContentKey(strings.Repeat("cd", 32))
	require.NoError(t, store.Namespace("jobs", "json").Put(key.String(), []byte("{not-json")))

	_, ok := store.Jobs().Lookup(key)
	assert.False(t, ok)
}

func TestJobCache_UnreadableEntryIsMiss(t *testing.T) {
	store := openStore(t, t.TempDir())
	key := ContentKey(strings.Repeat("ef", 32))
	path := store.Namespace("jobs", "json").Path(key.String())
	// A directory where the entry file should be makes the read fail.
	require.NoError(t, os.MkdirAll(path, 0o755))

	_, ok := store.Jobs().Lookup(key)
	assert.False(t, ok)
}

func TestStore_ClearRemovesEverything(t *testing.T) {
	store := openStore(t, t.TempDir())
	jobs := store.Jobs()
	require.NoError(t, jobs.Store(ContentKey(strings.Repeat("1", 64)), Entry{JobID: 1}))
	require.NoError(t, jobs.Store(ContentKey(strings.Repeat("2", 64)), Entry{JobID: 2}))
	require.NoError(t, store.Artifacts().Put(ArtifactKey(1, "wcs_file"), []byte("wcs")))
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "stray.txt"), []byte("x"), 0o600))

	require.NoError(t, store.Clear())

	_, ok := jobs.Lookup(ContentKey(strings.Repeat("1", 64)))
	assert.False(t, ok)
	_, ok = store.Artifacts().Get(ArtifactKey(1, "wcs_file"))
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(store.Root(), "stray.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_ClearContinuesPastFailures(t *testing.T) {
	store := openStore(t, t.TempDir())
	ns := store.Namespace("jobs", "json")
	require.NoError(t, ns.Put("good-1", []byte("1")))
	require.NoError(t, ns.Put("good-2", []byte("2")))

	// A non-empty directory inside a namespace cannot be removed with os.Remove.
	blocker := filepath.Join(store.Root(), "jobs", "blocker")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "inner"), 0o755))

	err := store.Clear()
	require.Error(t, err)
	var ioErr *CacheIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "remove", ioErr.Op)

	_, ok := ns.Get("good-1")
	assert.False(t, ok)
	_, ok = ns.Get("good-2")
	assert.False(t, ok)
}

func TestEntryFileName(t *testing.T) {
	name := EntryFileName("new_fits_file-1234/../x", "dat")
	assert.True(t, strings.HasPrefix(name, "new_fits_file-1234.-"), name)
	assert.True(t, strings.HasSuffix(name, ".dat"))
	assert.NotContains(t, name, "/")

	bare := EntryFileName("///", ".json")
	assert.Len(t, bare, 64+len(".json"))

	assert.Equal(t, EntryFileName("same", "json"), EntryFileName("same", "json"))
	assert.NotEqual(t, EntryFileName("same", "json"), EntryFileName("other", "json"))
}

func TestOpen_ExplicitDirExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := Open(Options{Dir: "~/cache-root"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache-root"), store.Root())
	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_DefaultsUnderUserCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	base, err := os.UserCacheDir()
	require.NoError(t, err)

	store, err := Open(Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, appName), store.Root())
}

package nimbusdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusdb/nimbusdb/internal/config"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "db")
	return cfg
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func bookDoc(title string, year int64) value.Value {
	o := value.NewObject()
	o.Set("title", value.String(title))
	o.Set("year", value.I64(year))
	return value.ObjectVal(o)
}

func TestOpenCreatesDataDir(t *testing.T) {
	cfg := testConfig(t)
	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	require.DirExists(t, cfg.Storage.DataDir)
}

func TestCollectionLifecycle(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.EnsureCollection("books"))
	require.Contains(t, db.Collections(), "books")

	require.NoError(t, db.RenameCollection("books", "novels"))
	require.Contains(t, db.Collections(), "novels")
	require.NotContains(t, db.Collections(), "books")

	require.NoError(t, db.RemoveCollection("novels"))
	require.NotContains(t, db.Collections(), "novels")
}

func TestCollectionLifecycleRejectsBadNames(t *testing.T) {
	db := openTestDB(t)
	require.ErrorIs(t, db.EnsureCollection(""), ErrInvalidCollectionName)
	require.ErrorIs(t, db.EnsureCollection("a/b"), ErrInvalidCollectionName)
}

func TestRenameRejectsExistingTarget(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("a"))
	require.NoError(t, db.EnsureCollection("b"))
	require.ErrorIs(t, db.RenameCollection("a", "b"), ErrTargetCollectionExists)
}

func TestPutGetDel(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("books"))

	id, err := db.Put("books", bookDoc("war and peace", 1869))
	require.NoError(t, err)

	got, err := db.Get("books", id)
	require.NoError(t, err)
	title, _ := got.AsObject().Get("title")
	require.Equal(t, "war and peace", title.AsString())

	require.NoError(t, db.Del("books", id))
	_, err = db.Get("books", id)
	require.ErrorIs(t, err, ErrDocumentNotFound)

	// Deleting an already-deleted id is a no-op, not an error.
	require.NoError(t, db.Del("books", id))
}

func TestPutUnknownCollection(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Put("missing", bookDoc("x", 1))
	require.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestPutWithIDReplacesExisting(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("books"))

	id := value.NewObjectID()
	require.NoError(t, db.PutWithID("books", id, bookDoc("first edition", 1869)))
	require.NoError(t, db.PutWithID("books", id, bookDoc("second edition", 1873)))

	got, err := db.Get("books", id)
	require.NoError(t, err)
	title, _ := got.AsObject().Get("title")
	require.Equal(t, "second edition", title.AsString())
}

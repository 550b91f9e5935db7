package nimbusdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

func TestEnsureIndexBackfillsExistingDocuments(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("authors"))

	_, err := db.Put("authors", objDoc("name", value.String("tolstoy")))
	require.NoError(t, err)
	_, err = db.Put("authors", objDoc("name", value.String("chekhov")))
	require.NoError(t, err)

	require.NoError(t, db.EnsureIndex("authors", "name", IndexString, true))

	n, err := db.QueryCount("authors", queryBytesOf(t, objDoc("name", value.String("chekhov"))), nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEnsureIndexIdempotentDoesNotDuplicateEntries(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("authors"))
	_, err := db.Put("authors", objDoc("name", value.String("gogol")))
	require.NoError(t, err)

	require.NoError(t, db.EnsureIndex("authors", "name", IndexString, true))
	// A second call against the same path/kind/uniqueness must not
	// re-backfill and trip a unique violation on its own prior entries.
	require.NoError(t, db.EnsureIndex("authors", "name", IndexString, true))
}

func TestEnsureIndexRejectsMismatchedMode(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("authors"))
	require.NoError(t, db.EnsureIndex("authors", "name", IndexString, true))
	require.ErrorIs(t, db.EnsureIndex("authors", "name", IndexString, false), ErrMismatchedIndexUniqueness)
}

func TestRemoveIndex(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("authors"))
	require.NoError(t, db.EnsureIndex("authors", "name", IndexString, false))
	require.NoError(t, db.RemoveIndex("authors", "name"))
	require.ErrorIs(t, db.RemoveIndex("authors", "name"), ErrIndexNotFound)
}

func TestEnsureIndexRejectsInvalidKind(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureCollection("authors"))
	require.ErrorIs(t, db.EnsureIndex("authors", "name", IndexValueKind(99), false), ErrInvalidIndexMode)
}

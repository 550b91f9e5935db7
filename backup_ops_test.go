package nimbusdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusdb/nimbusdb/internal/config"
)

func TestOnlineBackupAndRestore(t *testing.T) {
	db := openTestDB(t)
	seedBooks(t, db)

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	stamp, err := db.OnlineBackup(archivePath)
	require.NoError(t, err)
	require.False(t, stamp.IsZero())

	restoreDir := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, Restore(archivePath, restoreDir))

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = restoreDir
	restored, err := Open(cfg)
	require.NoError(t, err)
	defer restored.Close()

	require.Contains(t, restored.Collections(), "books")
	n, err := restored.QueryCount("books", queryBytesOf(t, objDoc()), nil)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

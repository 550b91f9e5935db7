package nimbusdb

import (
	"time"

	"github.com/nimbusdb/nimbusdb/internal/backup"
)

// OnlineBackup writes every collection's backing files into a single
// archive at targetPath, gzip-compressed when cfg.Backup.Compress says so
// (the DB's configuration is the only source of that choice), without stalling
// queries against collections outside the backup's walk. Matches
// online_backup().
func (db *DB) OnlineBackup(targetPath string) (time.Time, error) {
	return backup.OnlineBackup(db.registry, targetPath, db.cfg.Backup.Compress)
}

// Restore unpacks an archive produced by OnlineBackup into dataDir. The
// caller must not have a DB open over dataDir while Restore runs; open a
// fresh one over it afterward. This is a supplemented operation beyond
// online_backup itself, since a backup with no way to restore it would
// be useless to an embedding host.
func Restore(sourcePath, dataDir string) error {
	return backup.Restore(sourcePath, dataDir)
}

// Package backup implements NimbusDB's online_backup and restore
// operations.
//
// # Overview
//
// A backup is a single tar archive (gzip-compressed when requested)
// containing every collection's backing files — primary.db, index.db,
// and docs.log, one triple per collection subdirectory — copied out of a
// live collection.Registry without taking the database-wide lock for
// the whole operation:
//
//	stamp, err := backup.OnlineBackup(registry, "/var/lib/nimbusdb/backup/2026-07-30.tar.gz", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("backup completed at", stamp)
//
// # Restoring
//
// Restore unpacks an archive produced by OnlineBackup into a data
// directory a fresh Registry can then be opened over. It works for both
// compressed and uncompressed archives:
//
//	if err := backup.Restore("/var/lib/nimbusdb/backup/2026-07-30.tar.gz", "/var/lib/nimbusdb/restored"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Locking
//
// OnlineBackup holds registry.DBLock only long enough to snapshot the
// current list of collection names, then archives each collection under
// its own Lock (shared), one at a time. A collection that is actively
// serving a mutating query blocks the backup from reading its files until
// that query finishes; read-only queries run alongside it, and
// collections not currently part of the backup's walk are never blocked
// by it.
package backup

// Package backup implements online backup and restore of a NimbusDB data
// directory as a single tar archive, optionally gzip-compressed.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/collection"
)

// Backup errors.
var (
	ErrTargetPathEmpty = errors.New("backup: target path is required")
	ErrSourcePathEmpty = errors.New("backup: source path is required")
	ErrDataDirEmpty    = errors.New("backup: data directory is required")
)

// collectionFiles are the three files OpenRegistry/Collection.open create
// per collection subdirectory; OnlineBackup archives exactly these.
var collectionFiles = []string{"primary.db", "index.db", "docs.log"}

// OnlineBackup writes every collection's backing files under registry's
// data directory into a tar archive at targetPath (gzip-compressed when
// compress is true), returning the timestamp the backup completed at.
//
// It is "online" in the sense that it never holds the one lock that
// would stall every query for the whole walk: registry.DBLock is taken
// exclusively only while the list of collection names is read, and
// released before any file is copied, so a collection_ensure/remove/rename
// is excluded only for that snapshot. Each collection's own Lock is then
// held (shared) only while that collection's three files are being
// copied, so a query against a different collection is never blocked by
// the backup.
func OnlineBackup(registry *collection.Registry, targetPath string, compress bool) (time.Time, error) {
	if targetPath == "" {
		return time.Time{}, ErrTargetPathEmpty
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "backup: creating %s", targetPath)
	}
	defer out.Close()

	var w io.Writer = out
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(out)
		w = gz
	}
	tw := tar.NewWriter(w)

	dbLock := registry.DBLock()
	dbLock.Lock()
	names := registry.List()
	dbLock.Unlock()

	for _, name := range names {
		if err := archiveCollection(tw, registry, name); err != nil {
			return time.Time{}, err
		}
	}

	if err := tw.Close(); err != nil {
		return time.Time{}, errors.Wrap(err, "backup: closing tar writer")
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return time.Time{}, errors.Wrap(err, "backup: closing gzip writer")
		}
	}
	if err := out.Sync(); err != nil {
		return time.Time{}, errors.Wrap(err, "backup: sync")
	}

	return time.Now(), nil
}

func archiveCollection(tw *tar.Writer, registry *collection.Registry, name string) error {
	c, ok := registry.Get(name)
	if !ok {
		return nil
	}

	c.Lock.RLock()
	defer c.Lock.RUnlock()

	dir := filepath.Join(registry.Dir(), name)
	for _, file := range collectionFiles {
		if err := archiveFile(tw, dir, name, file); err != nil {
			return err
		}
	}
	return nil
}

func archiveFile(tw *tar.Writer, dir, collectionName, file string) error {
	path := filepath.Join(dir, file)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "backup: stat %s", path)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return errors.Wrapf(err, "backup: header for %s", path)
	}
	hdr.Name = filepath.Join(collectionName, file)

	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrapf(err, "backup: writing header for %s", hdr.Name)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "backup: opening %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return errors.Wrapf(err, "backup: copying %s", path)
	}
	return nil
}

// Restore unpacks an archive produced by OnlineBackup into dataDir,
// recreating each collection's subdirectory and files. It accepts both
// gzip-compressed and plain tar archives, detecting which by sniffing
// the gzip magic number rather than requiring the caller to remember how
// the backup was made.
//
// The caller is responsible for not holding a collection.Registry open
// over dataDir while Restore runs: Restore only manipulates files, it
// does not coordinate with a live registry the way OnlineBackup does.
func Restore(sourcePath, dataDir string) error {
	if sourcePath == "" {
		return ErrSourcePathEmpty
	}
	if dataDir == "" {
		return ErrDataDirEmpty
	}

	in, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "restore: opening %s", sourcePath)
	}
	defer in.Close()

	var r io.Reader = in
	if gz, err := gzip.NewReader(in); err == nil {
		defer gz.Close()
		r = gz
	} else if _, err := in.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "restore: seeking to start of archive")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return errors.Wrapf(err, "restore: creating %s", dataDir)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "restore: reading tar entry")
		}
		if err := restoreEntry(tr, hdr, dataDir); err != nil {
			return err
		}
	}
}

func restoreEntry(tr *tar.Reader, hdr *tar.Header, dataDir string) error {
	target := filepath.Join(dataDir, filepath.Clean(hdr.Name))
	if !isWithinDir(target, dataDir) {
		return errors.Errorf("restore: archive entry %q escapes data directory", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "restore: creating %s", filepath.Dir(target))
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
		if err != nil {
			return errors.Wrapf(err, "restore: creating %s", target)
		}
		defer f.Close()
		if _, err := io.Copy(f, tr); err != nil {
			return errors.Wrapf(err, "restore: writing %s", target)
		}
		return nil
	default:
		return nil
	}
}

// isWithinDir reports whether path is dir itself or lies under it,
// rejecting a tar entry (hdr.Name) crafted with ".." segments to escape
// the restore target directory.
func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

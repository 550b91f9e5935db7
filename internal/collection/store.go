// Package collection implements the primary per-collection document
// store and the collection registry: the concrete scan.PrimaryStore,
// consumer.DocStore, and join.CollectionStore implementations that wire
// the query subsystem together, plus collection lifecycle
// (ensure/remove/rename) and secondary index declaration.
//
// The primary store is itself a B+ tree, keyed by document id, whose
// leaves point into an append-only document body log rather than at a
// slotted heap page: the document body lives in the primary id-ordered
// store, not behind a separate page.
package collection

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/storage/btree"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// errNoMetadataPage signals a fresh storage file with no persisted
// directory root yet, not a real failure: OpenPrimaryStore treats it as
// the initialize-fresh-tree path.
var errNoMetadataPage = errors.New("collection: no primary store metadata page found")

// docLog is an append-only log of length-prefixed document bodies. A Put
// always appends a fresh record; the directory tree is the only structure
// that knows which offsets are still live, so updates and deletes leave
// their old bytes in place. Reclaiming that space is a compaction
// concern, not one the query subsystem this package serves needs to
// solve.
type docLog struct {
	mu   sync.Mutex
	file *os.File
	size int64
}

func openDocLog(path string) (*docLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &docLog{file: f, size: info.Size()}, nil
}

func (l *docLog) append(payload []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	off := l.size
	if _, err := l.file.WriteAt(header[:], off); err != nil {
		return 0, err
	}
	if len(payload) > 0 {
		if _, err := l.file.WriteAt(payload, off+4); err != nil {
			return 0, err
		}
	}
	l.size = off + 4 + int64(len(payload))
	return off, nil
}

func (l *docLog) readAt(off int64) ([]byte, error) {
	var header [4]byte
	if _, err := l.file.ReadAt(header[:], off); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := l.file.ReadAt(payload, off+4); err != nil {
		return nil, err
	}
	return payload, nil
}

func (l *docLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// packOffset packs a docLog offset into a btree.EntryRef's fixed 12-byte
// slot (8 bytes of offset, 4 bytes unused), so the primary store's id
// directory reuses the same B+ Tree type the secondary indexes are built
// on rather than a second tree implementation.
func packOffset(off int64) btree.EntryRef {
	var ref btree.EntryRef
	binary.LittleEndian.PutUint64(ref.DocID[:8], uint64(off))
	return ref
}

func unpackOffset(ref btree.EntryRef) int64 {
	return int64(binary.LittleEndian.Uint64(ref.DocID[:8]))
}

func idKey(id bson.ObjectID) []byte {
	b := make([]byte, 12)
	copy(b, id[:])
	return b
}

// primaryMetadataMarker tags the page holding a PrimaryStore's directory
// root pointer, the same one-page-directory scheme
// internal/index.Manager uses for its own B+ Trees, sized down to the one
// field a primary store's directory actually needs.
const primaryMetadataMarker byte = 0xD1

// PrimaryStore is one collection's id-ordered document store: a
// directory B+ Tree (document id -> docLog offset) over an append-only
// log of BSON-encoded document bodies. It implements scan.PrimaryStore
// (Ascend/Descend for full scans), consumer.DocStore (Get/Put/Delete for
// the pipeline's load and mutation steps), and the single-collection
// lookup join.CollectionStore needs once paired with a name in a
// Registry.
type PrimaryStore struct {
	mu             sync.RWMutex
	pm             *storage.PageManager
	tree           *btree.BPlusTree
	log            *docLog
	metadataPageID storage.PageID
}

// OpenPrimaryStore opens (or creates) a collection's document store: pm
// backs the directory tree, logPath names the append-only body log. On an
// existing pm, the directory tree's root page is recovered from its
// metadata page rather than starting a fresh, empty tree.
func OpenPrimaryStore(pm *storage.PageManager, logPath string) (*PrimaryStore, error) {
	log, err := openDocLog(logPath)
	if err != nil {
		return nil, err
	}

	s := &PrimaryStore{pm: pm, log: log}
	if err := s.loadMetadata(); err != nil {
		if err := s.initializeMetadata(); err != nil {
			log.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PrimaryStore) initializeMetadata() error {
	tree, err := btree.NewBPlusTree(s.pm, 0)
	if err != nil {
		return err
	}
	pageID, err := s.pm.AllocatePage(storage.PageTypeData)
	if err != nil {
		return err
	}
	s.tree = tree
	s.metadataPageID = pageID
	return s.saveMetadataLocked()
}

func (s *PrimaryStore) loadMetadata() error {
	total := s.pm.TotalPages()
	for pageID := storage.PageID(1); uint64(pageID) < total; pageID++ {
		page, err := s.pm.ReadPage(pageID)
		if err != nil {
			continue
		}
		if page.Header.PageType != storage.PageTypeData || len(page.Data) < 9 || page.Data[0] != primaryMetadataMarker {
			continue
		}
		rootPageID := storage.PageID(binary.LittleEndian.Uint64(page.Data[1:9]))
		tree, err := btree.NewBPlusTreeWithRoot(s.pm, rootPageID, 0)
		if err != nil {
			return err
		}
		s.tree = tree
		s.metadataPageID = pageID
		return nil
	}
	return errNoMetadataPage
}

func (s *PrimaryStore) saveMetadataLocked() error {
	page := storage.NewPage(s.metadataPageID, storage.PageTypeData)
	page.Data[0] = primaryMetadataMarker
	binary.LittleEndian.PutUint64(page.Data[1:9], uint64(s.tree.Root()))
	page.Header.SetDirty()
	return s.pm.WritePage(page)
}

// Get implements consumer.DocStore.
func (s *PrimaryStore) Get(id bson.ObjectID) (value.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs, err := s.tree.Search(idKey(id))
	if err != nil {
		return value.Value{}, false, err
	}
	if len(refs) == 0 {
		return value.Value{}, false, nil
	}
	raw, err := s.log.readAt(unpackOffset(refs[len(refs)-1]))
	if err != nil {
		return value.Value{}, false, err
	}
	doc, err := value.Decode(raw)
	if err != nil {
		return value.Value{}, false, err
	}
	return doc, true, nil
}

// Put implements consumer.DocStore: inserts id if it's new, or replaces
// its directory entry to point at the freshly appended body otherwise.
func (s *PrimaryStore) Put(id bson.ObjectID, doc value.Value) error {
	raw, err := value.Encode(doc)
	if err != nil {
		return err
	}
	off, err := s.log.append(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := idKey(id)
	if existing, err := s.tree.Search(key); err == nil && len(existing) > 0 {
		if err := s.tree.DeleteKey(key); err != nil {
			return err
		}
	}
	if err := s.tree.InsertUnique(key, packOffset(off)); err != nil {
		return err
	}
	return s.saveMetadataLocked()
}

// Delete implements consumer.DocStore. Deleting an id that isn't present
// is a no-op, matching the library API's del() semantics.
func (s *PrimaryStore) Delete(id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.DeleteKey(idKey(id)); err != nil {
		if err == btree.ErrKeyNotFound {
			return nil
		}
		return err
	}
	return s.saveMetadataLocked()
}

// Ascend implements scan.PrimaryStore: every id, in ascending order.
func (s *PrimaryStore) Ascend(yield func(id bson.ObjectID) bool) {
	it := s.tree.All()
	defer it.Close()
	for {
		key, _, ok := it.Next()
		if !ok {
			return
		}
		var id bson.ObjectID
		copy(id[:], key)
		if !yield(id) {
			return
		}
	}
}

// Descend implements scan.PrimaryStore: every id, in descending order.
func (s *PrimaryStore) Descend(yield func(id bson.ObjectID) bool) {
	it := s.tree.RangeReverse(nil, nil)
	defer it.Close()
	for {
		key, _, ok := it.Next()
		if !ok {
			return
		}
		var id bson.ObjectID
		copy(id[:], key)
		if !yield(id) {
			return
		}
	}
}

// Close releases the store's document log file handle.
func (s *PrimaryStore) Close() error {
	return s.log.Close()
}

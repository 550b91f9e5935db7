package index

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/storage/btree"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// registerRowCountGauge exposes ix's live row count as a named gauge, so
// a process with several collections open reports per-index cardinality
// without any caller having to poll RowCount() itself.
func registerRowCountGauge(ix *Index) {
	name := fmt.Sprintf(`nimbusdb_index_row_count{path=%q}`, ix.path.String())
	metrics.GetOrCreateGauge(name, func() float64 { return float64(ix.RowCount()) })
}

// metadataMarker tags the page holding the index manager's directory, so
// a scan-on-open pass can find it among a collection's ordinary B+ tree
// pages without tracking its page id anywhere else.
const metadataMarker byte = 0xB5

// Manager owns every secondary index declared for one collection's B+
// Tree storage file, and keeps a persisted directory of (path, kind,
// mode, root page) so indexes survive reopening the database.
type Manager struct {
	mu             sync.RWMutex
	pm             *storage.PageManager
	byPath         map[string]*Index
	metadataPageID storage.PageID
}

// NewManager opens (or, on a fresh file, creates) the index directory
// backed by pm.
func NewManager(pm *storage.PageManager) (*Manager, error) {
	m := &Manager{pm: pm, byPath: make(map[string]*Index)}
	if err := m.loadMetadata(); err != nil {
		if err := m.initializeMetadata(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EnsureIndex returns the index declared at path, creating it (and a
// fresh B+ Tree) if it doesn't exist yet. A second call with a different
// kind or mode than the first is rejected.
func (m *Manager) EnsureIndex(path value.Path, kind query.IndexValueKind, mode Mode) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ix, ok := m.byPath[path.String()]; ok {
		if ix.kind != kind || ix.mode != mode {
			return nil, ErrIndexExists
		}
		return ix, nil
	}

	tree, err := btree.NewBPlusTree(m.pm, 0)
	if err != nil {
		return nil, err
	}
	ix := &Index{path: path, kind: kind, mode: mode, tree: tree}
	m.byPath[path.String()] = ix
	if err := m.saveMetadataLocked(); err != nil {
		return nil, err
	}
	registerRowCountGauge(ix)
	return ix, nil
}

// RemoveIndex drops the index declared at path, if any.
func (m *Manager) RemoveIndex(path value.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byPath[path.String()]; !ok {
		return ErrIndexNotFound
	}
	delete(m.byPath, path.String())
	return m.saveMetadataLocked()
}

// Get returns the index declared at the given dotted path string, if any.
func (m *Manager) Get(pathStr string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.byPath[pathStr]
	return ix, ok
}

// List returns every declared index as a query.IndexDescriptor, the shape
// the optimizer consumes.
func (m *Manager) List() []query.IndexDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]query.IndexDescriptor, 0, len(m.byPath))
	for _, ix := range m.byPath {
		out = append(out, ix)
	}
	return out
}

func (m *Manager) snapshot() []*Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Index, 0, len(m.byPath))
	for _, ix := range m.byPath {
		out = append(out, ix)
	}
	return out
}

// InsertDoc adds an entry to every declared index for a newly inserted
// document. On a unique violation in any index, every index already
// updated for this call is rolled back and the error is returned.
func (m *Manager) InsertDoc(id bson.ObjectID, doc value.Value) error {
	indexes := m.snapshot()

	applied := make([]*Index, 0, len(indexes))
	appliedKeys := make([][][]byte, 0, len(indexes))
	for _, ix := range indexes {
		keys := ix.keysFor(doc)
		if len(keys) == 0 {
			continue
		}
		if err := ix.insertKeys(id, keys); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				applied[i].removeKeys(id, appliedKeys[i])
			}
			return err
		}
		applied = append(applied, ix)
		appliedKeys = append(appliedKeys, keys)
	}
	return nil
}

// RemoveDoc removes doc's entries from every declared index.
func (m *Manager) RemoveDoc(id bson.ObjectID, doc value.Value) error {
	for _, ix := range m.snapshot() {
		ix.removeKeys(id, ix.keysFor(doc))
	}
	return nil
}

// UpdateDoc moves doc's index entries from oldDoc's shape to newDoc's:
// snapshot the old value, compute the new value, issue (remove-old,
// add-new) per index. Indexes whose key set is unchanged are left
// untouched. Every unique-mode collision across every touched index is
// checked before any index is mutated, so a violation leaves all indexes
// exactly as they were.
func (m *Manager) UpdateDoc(id bson.ObjectID, oldDoc, newDoc value.Value) error {
	type change struct {
		ix                *Index
		oldKeys, newKeys  [][]byte
		addedKeys         [][]byte
	}

	var changes []change
	for _, ix := range m.snapshot() {
		oldKeys := ix.keysFor(oldDoc)
		newKeys := ix.keysFor(newDoc)
		if keySetsEqual(oldKeys, newKeys) {
			continue
		}
		changes = append(changes, change{ix: ix, oldKeys: oldKeys, newKeys: newKeys, addedKeys: keysMinus(newKeys, oldKeys)})
	}

	for _, c := range changes {
		if c.ix.mode != Unique {
			continue
		}
		for _, k := range c.addedKeys {
			existing, err := c.ix.tree.Search(k)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return newUniqueViolation(c.ix.path.String())
			}
		}
	}

	for _, c := range changes {
		c.ix.removeKeys(id, c.oldKeys)
		if err := c.ix.insertKeys(id, c.newKeys); err != nil {
			return err
		}
	}
	return nil
}

func keySetsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	return len(keysMinus(a, b)) == 0 && len(keysMinus(b, a)) == 0
}

// keysMinus returns the keys in a that are not present in b.
func keysMinus(a, b [][]byte) [][]byte {
	inB := make(map[string]bool, len(b))
	for _, k := range b {
		inB[string(k)] = true
	}
	var out [][]byte
	for _, k := range a {
		if !inB[string(k)] {
			out = append(out, k)
		}
	}
	return out
}

// initializeMetadata allocates the index directory page for a fresh
// storage file.
func (m *Manager) initializeMetadata() error {
	pageID, err := m.pm.AllocatePage(storage.PageTypeAttrIndex)
	if err != nil {
		return err
	}
	m.metadataPageID = pageID
	return m.saveMetadataLocked()
}

// loadMetadata scans for an existing directory page, rebuilding every
// declared index's B+ Tree from its persisted root page.
func (m *Manager) loadMetadata() error {
	total := m.pm.TotalPages()
	for pageID := storage.PageID(1); uint64(pageID) < total; pageID++ {
		page, err := m.pm.ReadPage(pageID)
		if err != nil {
			continue
		}
		if page.Header.PageType != storage.PageTypeAttrIndex || len(page.Data) == 0 || page.Data[0] != metadataMarker {
			continue
		}
		m.metadataPageID = pageID
		return m.parseMetadataPage(page.Data)
	}
	return ErrIndexNotFound
}

func (m *Manager) parseMetadataPage(data []byte) error {
	if len(data) < 3 {
		return ErrIndexNotFound
	}
	offset := 1
	count := binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	for i := uint16(0); i < count; i++ {
		if offset+2 > len(data) {
			return ErrIndexNotFound
		}
		pathLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if offset+pathLen+10 > len(data) {
			return ErrIndexNotFound
		}
		pathStr := string(data[offset : offset+pathLen])
		offset += pathLen
		kind := query.IndexValueKind(data[offset])
		offset++
		mode := Mode(data[offset])
		offset++
		rootPageID := storage.PageID(binary.LittleEndian.Uint64(data[offset : offset+8]))
		offset += 8

		tree, err := btree.NewBPlusTreeWithRoot(m.pm, rootPageID, 0)
		if err != nil {
			return err
		}
		path := value.CompilePath(pathStr)
		ix := &Index{path: path, kind: kind, mode: mode, tree: tree}
		ix.rowCount = countEntries(tree)
		m.byPath[pathStr] = ix
		registerRowCountGauge(ix)
	}
	return nil
}

// countEntries walks tree once to recover the row count a reopened index
// doesn't otherwise carry across process restarts (the directory page
// persists the root pointer, not a running count).
func countEntries(tree *btree.BPlusTree) int64 {
	it := tree.All()
	defer it.Close()
	var n int64
	for {
		if _, _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}

// saveMetadataLocked serializes the current directory to m.metadataPageID.
// Caller must hold m.mu.
func (m *Manager) saveMetadataLocked() error {
	page := storage.NewPage(m.metadataPageID, storage.PageTypeAttrIndex)
	data := page.Data
	data[0] = metadataMarker
	offset := 1
	binary.LittleEndian.PutUint16(data[offset:], uint16(len(m.byPath)))
	offset += 2

	for pathStr, ix := range m.byPath {
		entryLen := 2 + len(pathStr) + 1 + 1 + 8
		if offset+entryLen > len(data) {
			break // directory page is full; the remaining entries are not written
		}
		binary.LittleEndian.PutUint16(data[offset:], uint16(len(pathStr)))
		offset += 2
		copy(data[offset:], pathStr)
		offset += len(pathStr)
		data[offset] = byte(ix.kind)
		offset++
		data[offset] = byte(ix.mode)
		offset++
		binary.LittleEndian.PutUint64(data[offset:], uint64(ix.tree.Root()))
		offset += 8
	}

	page.Header.ItemCount = uint16(len(m.byPath))
	page.Header.SetDirty()
	return m.pm.WritePage(page)
}

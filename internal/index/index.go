// Package index builds a typed, document-id-keyed secondary index model
// on top of the page-backed B+ tree in internal/storage/btree: one B+
// tree per declared (path, value kind) pair, in unique or duplicate
// mode, implementing query.IndexDescriptor so the optimizer and consumer
// pipeline never depend on storage details.
package index

import (
	"bytes"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/storage/btree"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// Mode selects whether an index rejects duplicate keys or accumulates
// multiple documents under the same key.
type Mode int

const (
	// Unique indexes fail a write that would create a second entry under
	// an already-present key.
	Unique Mode = iota
	// Duplicate indexes store every matching document under its key,
	// keyed additionally by document id to keep entries distinct.
	Duplicate
)

// Index is one declared secondary index: a path, the BSON kind it
// indexes, its uniqueness mode, and the B+ Tree backing it.
type Index struct {
	path     value.Path
	kind     query.IndexValueKind
	mode     Mode
	tree     *btree.BPlusTree
	rowCount int64
}

var _ query.IndexDescriptor = (*Index)(nil)

// Path implements query.IndexDescriptor.
func (ix *Index) Path() value.Path { return ix.path }

// ValueKind implements query.IndexDescriptor.
func (ix *Index) ValueKind() query.IndexValueKind { return ix.kind }

// Unique implements query.IndexDescriptor.
func (ix *Index) Unique() bool { return ix.mode == Unique }

// Mode returns the index's duplicate-handling mode.
func (ix *Index) Mode() Mode { return ix.mode }

// RowCount implements query.IndexDescriptor.
func (ix *Index) RowCount() int64 { return atomic.LoadInt64(&ix.rowCount) }

// encodeValue encodes v as an index key if its kind matches the index's
// declared value kind; ok is false when the value can't be indexed here
// (a document whose field at this path holds a different BSON type simply
// isn't represented in this index).
func (ix *Index) encodeValue(v value.Value) (key []byte, ok bool) {
	switch ix.kind {
	case query.IndexKindString:
		if v.Kind() != value.KindString {
			return nil, false
		}
		return []byte(v.AsString()), true
	case query.IndexKindI64:
		if v.Kind() != value.KindI64 {
			return nil, false
		}
		return EncodeI64Key(v.AsI64()), true
	case query.IndexKindF64:
		if v.Kind() != value.KindF64 {
			return nil, false
		}
		return EncodeF64Key(v.AsF64()), true
	default:
		return nil, false
	}
}

// EncodeValue exposes encodeValue to package scan, which must translate a
// query bound (a plain BSON scalar from the filter tree) into the same byte
// encoding keysFor uses, without reaching into the index's internals.
func (ix *Index) EncodeValue(v value.Value) (key []byte, ok bool) {
	return ix.encodeValue(v)
}

// InsertDoc adds doc's entries to this one index, for a caller backfilling
// a freshly declared index against documents that already existed in the
// collection (Manager.InsertDoc, by contrast, fans a new document out to
// every declared index at once).
func (ix *Index) InsertDoc(id bson.ObjectID, doc value.Value) error {
	return ix.insertKeys(id, ix.keysFor(doc))
}

// ValuePart strips a Duplicate-mode storage key down to its encoded-value
// prefix, discarding the trailing document id; in Unique mode the storage
// key already is the value, so it is returned unchanged. Package scan uses
// this to re-derive the indexed value of a cursor entry for the exact
// boundary checks (strict $gt/$lt, $begin prefix failure) that a B+ Tree
// range, being inclusive on both ends, cannot express on its own.
func (ix *Index) ValuePart(storageKey []byte) []byte {
	if ix.mode == Unique || len(storageKey) < docIDSize {
		return storageKey
	}
	return storageKey[:len(storageKey)-docIDSize]
}

// docIDSize matches bson.ObjectID's width, the suffix storageKey appends in
// Duplicate mode.
const docIDSize = 12

// keysFor resolves ix.path against doc and encodes every matching value,
// deduplicating repeated equal values (the duplicate-index array-value
// dedup decision in DESIGN.md: an array with repeated equal elements
// contributes one index entry, not one per repetition).
func (ix *Index) keysFor(doc value.Value) [][]byte {
	matches := value.Resolve(doc, ix.path)
	seen := make(map[string]bool, len(matches))
	keys := make([][]byte, 0, len(matches))
	for _, m := range matches {
		k, ok := ix.encodeValue(m.Value)
		if !ok {
			continue
		}
		sk := string(k)
		if seen[sk] {
			continue
		}
		seen[sk] = true
		keys = append(keys, k)
	}
	return keys
}

// storageKey returns the byte sequence actually stored in the tree for a
// given encoded value key: in Duplicate mode the document id is appended
// so distinct documents sharing a key don't collide on the same tree key.
func (ix *Index) storageKey(valueKey []byte, id bson.ObjectID) []byte {
	if ix.mode == Unique {
		return valueKey
	}
	out := make([]byte, 0, len(valueKey)+len(id))
	out = append(out, valueKey...)
	out = append(out, id[:]...)
	return out
}

// insertKeys inserts id under every key in keys. In Unique mode it first
// verifies none of the keys already exist; returns ErrUniqueIndexViolation
// without mutating the tree if any would collide.
func (ix *Index) insertKeys(id bson.ObjectID, keys [][]byte) error {
	if ix.mode == Unique {
		for _, k := range keys {
			existing, err := ix.tree.Search(k)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return newUniqueViolation(ix.path.String())
			}
		}
	}
	for _, k := range keys {
		sk := ix.storageKey(k, id)
		if err := ix.tree.Insert(sk, btree.EntryRef{DocID: id}); err != nil {
			return err
		}
		atomic.AddInt64(&ix.rowCount, 1)
	}
	return nil
}

// removeKeys removes id's entry under every key in keys, ignoring keys
// that are already absent (tolerant of partial prior state during
// rollback).
func (ix *Index) removeKeys(id bson.ObjectID, keys [][]byte) {
	for _, k := range keys {
		sk := ix.storageKey(k, id)
		if err := ix.tree.Delete(sk, btree.EntryRef{DocID: id}); err == nil {
			atomic.AddInt64(&ix.rowCount, -1)
		}
	}
}

// Lookup returns every document id stored under a single encoded key. In
// Duplicate mode the stored tree key is valueKey+docID, so an equality
// lookup is a prefix scan rather than an exact Search.
func (ix *Index) Lookup(key []byte) ([]bson.ObjectID, error) {
	if ix.mode == Unique {
		refs, err := ix.tree.Search(key)
		if err != nil {
			return nil, err
		}
		return refsToIDs(refs), nil
	}

	refs, err := ix.tree.SearchPrefix(key)
	if err != nil {
		return nil, err
	}
	return refsToIDs(refs), nil
}

func refsToIDs(refs []btree.EntryRef) []bson.ObjectID {
	out := make([]bson.ObjectID, len(refs))
	for i, r := range refs {
		out[i] = bson.ObjectID(r.DocID)
	}
	return out
}

// LookupRange returns every document id whose key falls in [low, high]
// (either bound nil meaning unbounded), in index (ascending key) order.
// In Duplicate mode the stored key is valueKey+docID, so an inclusive
// high bound on the bare value must be widened with a maximal docID
// suffix or entries exactly equal to high would be cut off.
func (ix *Index) LookupRange(low, high []byte) ([]bson.ObjectID, error) {
	adjHigh := high
	if ix.mode == Duplicate && high != nil {
		adjHigh = append(append([]byte{}, high...), maxDocIDSuffix...)
	}
	refs, err := ix.tree.SearchRange(low, adjHigh)
	if err != nil {
		return nil, err
	}
	return refsToIDs(refs), nil
}

// Cursor iterates document ids across a key range, forward or reverse,
// for the range/bound-walking scanners (a cursor opened at cursor_init
// and advanced by cursor_step — anything beyond a single equality/$in
// lookup).
type Cursor struct {
	it      *btree.BPlusIterator
	rit     *btree.ReverseIterator
	reverse bool
}

// OpenCursor opens a cursor over [low, high] (either bound nil for
// unbounded); reverse selects RangeReverse for a descending walk (used
// for AfterLast/Prev plans).
func (ix *Index) OpenCursor(low, high []byte, reverse bool) *Cursor {
	adjHigh := high
	if ix.mode == Duplicate && high != nil {
		adjHigh = append(append([]byte{}, high...), maxDocIDSuffix...)
	}
	if reverse {
		return &Cursor{rit: ix.tree.RangeReverse(low, adjHigh), reverse: true}
	}
	return &Cursor{it: ix.tree.Range(low, adjHigh)}
}

// Next advances the cursor, returning the next document id in key order
// along with the raw storage key it was found under — callers that need
// the exact indexed value (to enforce strict bound semantics a B+ Tree
// range can't express) recover it via Index.ValuePart(key).
func (c *Cursor) Next() (key []byte, id bson.ObjectID, ok bool) {
	if c.reverse {
		k, ref, ok := c.rit.Next()
		if !ok {
			return nil, bson.ObjectID{}, false
		}
		return k, bson.ObjectID(ref.DocID), true
	}
	k, ref, ok := c.it.Next()
	if !ok {
		return nil, bson.ObjectID{}, false
	}
	return k, bson.ObjectID(ref.DocID), true
}

// Close releases the cursor's resources.
func (c *Cursor) Close() {
	if c.reverse {
		c.rit.Close()
		return
	}
	c.it.Close()
}

var maxDocIDSuffix = func() []byte {
	b := make([]byte, len(bson.ObjectID{}))
	for i := range b {
		b[i] = 0xFF
	}
	return b
}()

// PrefixUpperBound returns a key guaranteed to sort after every stored key
// with the given byte prefix, regardless of mode: wide enough to clear a
// Duplicate-mode document-id suffix plus margin. Package scan uses this to
// bound a $begin cursor's reverse walk so it doesn't traverse the entire
// remainder of the tree before reaching the prefixed region.
func (ix *Index) PrefixUpperBound(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), prefixUpperSuffix...)
}

var prefixUpperSuffix = bytes.Repeat([]byte{0xFF}, 32)

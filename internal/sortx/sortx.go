// Package sortx implements an external sorter: when a plan requires
// $orderby sorting, the consumer pipeline
// writes every candidate into a Sorter instead of delivering it straight to
// the visitor. The Sorter buffers (id, document) pairs in a growable byte
// region, spilling to an anonymous mmap'd temp file once the in-memory
// buffer crosses a high-water mark, then at end-of-scan sorts references
// to those pairs by the query's order keys and drains them to the visitor.
// The spill file is anonymous and unlinked on open, growing by Fibonacci
// doubling rather than fixed page-sized steps.
package sortx

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// DefaultHighWaterMark is the default in-memory buffer ceiling before a
// Sorter spills to a temp file mmap.
const DefaultHighWaterMark = 16 * 1024 * 1024

const idSize = 12 // bson.ObjectID is a fixed 12-byte value

// Deliver receives one sorted result; it mirrors consumer.Visitor's step
// protocol so a Sorter's output can be fed straight into the same kind of
// caller a scan.Consumer would otherwise deliver to directly.
type Deliver func(id bson.ObjectID, doc value.Value) (step int)

// Options configures a Sorter.
type Options struct {
	// HighWaterMark is the in-memory buffer size, in bytes, above which the
	// Sorter migrates to a temp file mmap. Zero means DefaultHighWaterMark.
	HighWaterMark int64
	// TempDir is the directory the spill file is created in. Empty means
	// the default directory for temporary files (os.TempDir).
	TempDir string
}

// Sorter buffers (id, document) pairs as a growable region of concatenated
// records with a parallel offsets vector, then sorts and drains them by an
// $orderby clause. It is single-use: construct one per query execution.
type Sorter struct {
	highWater int64
	tempDir   string

	// docs holds concatenated records while everything still fits in
	// memory. spill copies everything docs held into the mmap and sets
	// docs to nil; from then on every write and read goes through the mmap
	// (Remap never shrinks, so already-written records stay readable).
	docs []byte
	refs []int64 // offsets of each record's start within docs (or the mmap)

	file *os.File
	mm   *storage.MmapManager
	size int64 // logical bytes written into the mmap region so far

	err error
}

// New creates a Sorter. opts may be the zero value to take every default.
func New(opts Options) *Sorter {
	hw := opts.HighWaterMark
	if hw <= 0 {
		hw = DefaultHighWaterMark
	}
	return &Sorter{
		highWater: hw,
		tempDir:   opts.TempDir,
		docs:      make([]byte, 0, 4096),
	}
}

// Write implements consumer.Visitor's shape for a sorting consumer: it
// appends id's document to the buffer and always asks the scan to
// continue (sorting collects every candidate that reaches it; $skip/$max
// are honoured during the drain, not during collection). A previously
// recorded I/O error short-circuits further writes.
func (s *Sorter) Write(id bson.ObjectID, doc value.Value) (step int) {
	if s.err != nil {
		return 0
	}
	raw, err := value.Encode(doc)
	if err != nil {
		s.err = err
		return 0
	}

	rec := make([]byte, idSize+4+len(raw))
	copy(rec[:idSize], id[:])
	binary.LittleEndian.PutUint32(rec[idSize:idSize+4], uint32(len(raw)))
	copy(rec[idSize+4:], raw)

	off, err := s.append(rec)
	if err != nil {
		s.err = err
		return 0
	}
	s.refs = append(s.refs, off)
	return 1
}

// Err returns the first I/O or encoding error a Sorter encountered, if any.
func (s *Sorter) Err() error { return s.err }

// append writes rec to the end of the buffer, spilling to a temp file
// mmap first if doing so would cross the high-water mark, and returns
// rec's starting offset.
func (s *Sorter) append(rec []byte) (int64, error) {
	if s.mm == nil && int64(len(s.docs)+len(rec)) > s.highWater {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	if s.mm == nil {
		off := int64(len(s.docs))
		s.docs = append(s.docs, rec...)
		return off, nil
	}

	off := s.size
	need := off + int64(len(rec))
	if need > s.mm.Size() {
		if err := s.growMmap(need); err != nil {
			return 0, err
		}
	}
	if _, err := s.mm.WriteAt(rec, off); err != nil {
		return 0, err
	}
	s.size = need
	return off, nil
}

// spill migrates the in-memory buffer to a newly created anonymous temp
// file mmap. The file is unlinked immediately after creation, so it
// exists only as long as this process holds it open. The name carries a
// random UUID rather than a counter or pid so two Sorters spilling
// concurrently in the same tempDir can never collide.
func (s *Sorter) spill() error {
	tempDir := s.tempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	name := filepath.Join(tempDir, "nimbusdb-sort-"+uuid.NewString())
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer os.Remove(name)

	initial := int64(len(s.docs))
	if initial == 0 {
		initial = s.highWater
	}
	mm, err := storage.NewMmapManager(f, initial)
	if err != nil {
		f.Close()
		return err
	}

	if len(s.docs) > 0 {
		if _, err := mm.WriteAt(s.docs, 0); err != nil {
			mm.Close()
			return err
		}
	}

	s.file = f
	s.mm = mm
	s.size = int64(len(s.docs))
	s.docs = nil
	return nil
}

// growMmap extends the spill mmap to at least need bytes, doubling by the
// Fibonacci sequence seeded at the current size rather than a flat
// power-of-two, so repeated small overflows don't repeatedly double an
// already-large region.
func (s *Sorter) growMmap(need int64) error {
	cur := s.mm.Size()
	prev := cur
	next := cur
	if next == 0 {
		next = s.highWater
	}
	for next < need {
		prev, next = next, prev+next
	}
	return s.mm.Remap(next)
}

// Close releases the spill file, if one was opened. Safe to call even if
// no spill ever happened.
func (s *Sorter) Close() error {
	if s.mm == nil {
		return nil
	}
	err := s.mm.Close()
	s.file.Close()
	s.mm = nil
	s.file = nil
	return err
}

// recordAt returns the decoded (id, document) pair stored at off.
func (s *Sorter) recordAt(off int64) (bson.ObjectID, value.Value, error) {
	var header [idSize + 4]byte
	if err := s.readAt(header[:], off); err != nil {
		return bson.ObjectID{}, value.Value{}, err
	}
	var id bson.ObjectID
	copy(id[:], header[:idSize])
	n := binary.LittleEndian.Uint32(header[idSize : idSize+4])

	raw := make([]byte, n)
	if err := s.readAt(raw, off+idSize+4); err != nil {
		return bson.ObjectID{}, value.Value{}, err
	}
	doc, err := value.Decode(raw)
	if err != nil {
		return bson.ObjectID{}, value.Value{}, err
	}
	return id, doc, nil
}

func (s *Sorter) readAt(p []byte, off int64) error {
	if s.mm != nil {
		_, err := s.mm.ReadAt(p, off)
		return err
	}
	copy(p, s.docs[off:])
	return nil
}

// Sort orders refs by orderBy, in declared key order, each key's sign
// reversed for Descending.
// Ties fall through to later keys and are otherwise left in original scan
// order (a stable sort).
func (s *Sorter) Sort(orderBy []query.OrderByKey) error {
	if s.err != nil {
		return s.err
	}
	docs := make([]value.Value, len(s.refs))
	for i, off := range s.refs {
		_, doc, err := s.recordAt(off)
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	order := make([]int, len(s.refs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(docs[order[i]], docs[order[j]], orderBy)
	})
	sorted := make([]int64, len(order))
	for i, k := range order {
		sorted[i] = s.refs[k]
	}
	s.refs = sorted
	return nil
}

func less(a, b value.Value, orderBy []query.OrderByKey) bool {
	for _, k := range orderBy {
		av, aok := value.ResolveFirst(a, k.Path)
		bv, bok := value.ResolveFirst(b, k.Path)
		var c int
		switch {
		case !aok && !bok:
			c = 0
		case !aok:
			c = -1
		case !bok:
			c = 1
		default:
			c = value.Compare(av.Value, bv.Value)
		}
		if k.Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// Drain walks refs in their current order (call Sort first), skipping the
// first skip entries and delivering up to max to deliver — max <= 0 means
// unlimited. It stops early if deliver returns a zero step, matching
// scan.Consumer's early-stop convention.
func (s *Sorter) Drain(skip, max int64, deliver Deliver) error {
	delivered := int64(0)
	for i, off := range s.refs {
		if int64(i) < skip {
			continue
		}
		if max > 0 && delivered >= max {
			break
		}
		id, doc, err := s.recordAt(off)
		if err != nil {
			return err
		}
		if deliver(id, doc) == 0 {
			break
		}
		delivered++
	}
	return nil
}

// Len returns the number of records buffered so far.
func (s *Sorter) Len() int { return len(s.refs) }

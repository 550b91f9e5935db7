package scan

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/index"
	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// recorder is a Consumer that accepts every id and records the order seen.
type recorder struct {
	seen []bson.ObjectID
	stop int // stop after this many ids (0 = never)
	done int
}

func (r *recorder) Visit(id bson.ObjectID) (int, bool) {
	r.seen = append(r.seen, id)
	if r.stop > 0 && len(r.seen) >= r.stop {
		return 0, true
	}
	return 1, true
}

func (r *recorder) Done(resultCount int) { r.done = resultCount }

func newTestIndexManager(t *testing.T) *index.Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "nimbusdb_scan_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := storage.DefaultOptions()
	opts.CreateIfNew = true
	pm, err := storage.OpenPageManager(filepath.Join(dir, "idx.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })

	m, err := index.NewManager(pm)
	require.NoError(t, err)
	return m
}

func ageIndex(t *testing.T, mode index.Mode) (*index.Index, map[int64]bson.ObjectID) {
	m := newTestIndexManager(t)
	ix, err := m.EnsureIndex(value.CompilePath("age"), query.IndexKindI64, mode)
	require.NoError(t, err)

	ids := map[int64]bson.ObjectID{}
	ages := []int64{10, 20, 20, 30, 40}
	if mode == index.Unique {
		ages = []int64{10, 20, 30, 40} // a unique index rejects the repeated 20
	}
	for _, age := range ages {
		id := bson.NewObjectID()
		o := value.NewObject()
		o.Set("age", value.I64(age))
		require.NoError(t, m.InsertDoc(id, value.ObjectVal(o)))
		ids[age] = id // last id wins for the repeated 20, fine for range tests
	}
	return ix, ids
}

func leaf(path string, op query.Op, rhs value.Value) *query.Node {
	return query.NewLeaf(value.CompilePath(path), op, rhs)
}

func TestRunPrimaryKey(t *testing.T) {
	id1 := bson.NewObjectID()
	id2 := bson.NewObjectID()
	plan := &query.Plan{
		UsePrimaryKey: true,
		PrimaryKeyIDs: []value.Value{value.OID(id1), value.OID(id2)},
		CursorInit:    query.Eq,
		CursorStep:    query.Next,
	}
	r := &recorder{}
	Run(plan, nil, nil, r)
	require.Equal(t, []bson.ObjectID{id1, id2}, r.seen)
	require.Equal(t, 2, r.done)
}

// fakeStore implements PrimaryStore over a fixed ascending-id-ordered slice.
type fakeStore struct{ ids []bson.ObjectID }

func (s *fakeStore) Ascend(yield func(bson.ObjectID) bool) {
	for _, id := range s.ids {
		if !yield(id) {
			return
		}
	}
}

func (s *fakeStore) Descend(yield func(bson.ObjectID) bool) {
	for i := len(s.ids) - 1; i >= 0; i-- {
		if !yield(s.ids[i]) {
			return
		}
	}
}

func TestRunFullScan_ForwardAndReverse(t *testing.T) {
	ids := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i][:]) < string(ids[j][:]) })
	store := &fakeStore{ids: ids}

	fwd := &query.Plan{CursorInit: query.BeforeFirst, CursorStep: query.Next}
	r := &recorder{}
	Run(fwd, nil, store, r)
	require.Equal(t, ids, r.seen)

	rev := &query.Plan{CursorInit: query.AfterLast, CursorStep: query.Prev}
	r2 := &recorder{}
	Run(rev, nil, store, r2)
	want := append([]bson.ObjectID{}, ids...)
	reverseIDs(want)
	require.Equal(t, want, r2.seen)
}

func TestRunFullScan_StopMidway(t *testing.T) {
	ids := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()}
	store := &fakeStore{ids: ids}
	r := &recorder{stop: 2}
	Run(&query.Plan{CursorInit: query.BeforeFirst, CursorStep: query.Next}, nil, store, r)
	require.Equal(t, ids[:2], r.seen)
	require.Equal(t, 2, r.done)
}

func TestRunIndex_Equality(t *testing.T) {
	ix, ids := ageIndex(t, index.Unique)
	plan := &query.Plan{
		MainIndex:  ix,
		E1:         leaf("age", query.OpEq, value.I64(30)),
		CursorInit: query.Eq,
		CursorStep: query.Next,
	}
	r := &recorder{}
	Run(plan, ix, nil, r)
	require.Equal(t, []bson.ObjectID{ids[30]}, r.seen)
}

func TestRunIndex_DuplicateEquality_MultipleHits(t *testing.T) {
	ix, _ := ageIndex(t, index.Duplicate)
	plan := &query.Plan{
		MainIndex:  ix,
		E1:         leaf("age", query.OpEq, value.I64(20)),
		CursorInit: query.Eq,
		CursorStep: query.Next,
	}
	r := &recorder{}
	Run(plan, ix, nil, r)
	require.Len(t, r.seen, 2)
}

func TestRunIndex_RangeGtLt(t *testing.T) {
	ix, ids := ageIndex(t, index.Duplicate)
	e1 := leaf("age", query.OpGt, value.I64(10))
	e2 := leaf("age", query.OpLt, value.I64(40))
	plan := &query.Plan{MainIndex: ix, E1: e1, E2: e2, CursorInit: query.Eq, CursorStep: query.Next}
	r := &recorder{}
	Run(plan, ix, nil, r)
	// ages 20, 20, 30 qualify; 10 excluded (strict gt), 40 excluded (strict lt)
	require.Len(t, r.seen, 3)
	require.NotContains(t, r.seen, ids[10])
	require.NotContains(t, r.seen, ids[40])
}

func TestRunIndex_RangeGteLte_Inclusive(t *testing.T) {
	ix, ids := ageIndex(t, index.Unique)
	e1 := leaf("age", query.OpGte, value.I64(10))
	e2 := leaf("age", query.OpLte, value.I64(30))
	plan := &query.Plan{MainIndex: ix, E1: e1, E2: e2, CursorInit: query.Eq, CursorStep: query.Next}
	r := &recorder{}
	Run(plan, ix, nil, r)
	require.Contains(t, r.seen, ids[10])
	require.Contains(t, r.seen, ids[30])
	require.NotContains(t, r.seen, ids[40])
}

func TestRunIndex_Begin_Prefix(t *testing.T) {
	m := newTestIndexManager(t)
	ix, err := m.EnsureIndex(value.CompilePath("name"), query.IndexKindString, index.Unique)
	require.NoError(t, err)

	names := []string{"anton", "anna", "boris"}
	idByName := map[string]bson.ObjectID{}
	for _, n := range names {
		id := bson.NewObjectID()
		o := value.NewObject()
		o.Set("name", value.String(n))
		require.NoError(t, m.InsertDoc(id, value.ObjectVal(o)))
		idByName[n] = id
	}

	plan := &query.Plan{
		MainIndex:  ix,
		E1:         leaf("name", query.OpBegin, value.String("an")),
		CursorInit: query.Eq,
		CursorStep: query.Next,
	}
	r := &recorder{}
	Run(plan, ix, nil, r)
	require.Len(t, r.seen, 2)
	require.Contains(t, r.seen, idByName["anton"])
	require.Contains(t, r.seen, idByName["anna"])
	require.NotContains(t, r.seen, idByName["boris"])
}

func TestRunIndex_In_SortedAndDeduped(t *testing.T) {
	ix, ids := ageIndex(t, index.Duplicate)
	plan := &query.Plan{
		MainIndex:  ix,
		E1:         leaf("age", query.OpIn, value.Value{}),
		CursorInit: query.Eq,
		CursorStep: query.Next,
	}
	plan.E1.Array = []value.Value{value.I64(40), value.I64(10), value.I64(10)}
	r := &recorder{}
	Run(plan, ix, nil, r)
	require.Equal(t, []bson.ObjectID{ids[10], ids[40]}, r.seen)
}

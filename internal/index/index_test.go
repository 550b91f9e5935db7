package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/storage"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "nimbusdb_index_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := storage.DefaultOptions()
	opts.CreateIfNew = true
	pm, err := storage.OpenPageManager(filepath.Join(dir, "idx.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })

	m, err := NewManager(pm)
	require.NoError(t, err)
	return m
}

func docWithName(name string) *value.Object {
	o := value.NewObject()
	o.Set("name", value.String(name))
	return o
}

func TestManager_UniqueIndex_RejectsDuplicateKey(t *testing.T) {
	m := newTestManager(t)
	_, err := m.EnsureIndex(value.CompilePath("name"), query.IndexKindString, Unique)
	require.NoError(t, err)

	id1 := bson.NewObjectID()
	require.NoError(t, m.InsertDoc(id1, value.ObjectVal(docWithName("anton"))))

	id2 := bson.NewObjectID()
	err = m.InsertDoc(id2, value.ObjectVal(docWithName("anton")))
	require.ErrorIs(t, err, ErrUniqueIndexViolation)

	ix, _ := m.Get("name")
	require.Equal(t, int64(1), ix.RowCount())
}

func TestManager_DuplicateIndex_AllowsSharedKey(t *testing.T) {
	m := newTestManager(t)
	_, err := m.EnsureIndex(value.CompilePath("name"), query.IndexKindString, Duplicate)
	require.NoError(t, err)

	id1 := bson.NewObjectID()
	id2 := bson.NewObjectID()
	require.NoError(t, m.InsertDoc(id1, value.ObjectVal(docWithName("anton"))))
	require.NoError(t, m.InsertDoc(id2, value.ObjectVal(docWithName("anton"))))

	ix, ok := m.Get("name")
	require.True(t, ok)
	ids, err := ix.Lookup(ix.keysFor(value.ObjectVal(docWithName("anton")))[0])
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestManager_RemoveDoc(t *testing.T) {
	m := newTestManager(t)
	_, err := m.EnsureIndex(value.CompilePath("name"), query.IndexKindString, Unique)
	require.NoError(t, err)

	id := bson.NewObjectID()
	doc := value.ObjectVal(docWithName("anton"))
	require.NoError(t, m.InsertDoc(id, doc))
	require.NoError(t, m.RemoveDoc(id, doc))

	ix, _ := m.Get("name")
	require.Equal(t, int64(0), ix.RowCount())

	// a second document can now reuse the key.
	require.NoError(t, m.InsertDoc(bson.NewObjectID(), doc))
}

func TestManager_UpdateDoc_MovesKeyAndRejectsCollision(t *testing.T) {
	m := newTestManager(t)
	_, err := m.EnsureIndex(value.CompilePath("name"), query.IndexKindString, Unique)
	require.NoError(t, err)

	idA := bson.NewObjectID()
	require.NoError(t, m.InsertDoc(idA, value.ObjectVal(docWithName("anton"))))
	idB := bson.NewObjectID()
	require.NoError(t, m.InsertDoc(idB, value.ObjectVal(docWithName("ivan"))))

	require.NoError(t, m.UpdateDoc(idA, value.ObjectVal(docWithName("anton")), value.ObjectVal(docWithName("pavel"))))
	ix, _ := m.Get("name")
	ids, err := ix.Lookup(ix.keysFor(value.ObjectVal(docWithName("pavel")))[0])
	require.NoError(t, err)
	require.Len(t, ids, 1)

	err = m.UpdateDoc(idA, value.ObjectVal(docWithName("pavel")), value.ObjectVal(docWithName("ivan")))
	require.ErrorIs(t, err, ErrUniqueIndexViolation)

	// rolled back: "pavel" must still resolve, "ivan" must still belong to idB only.
	ids, err = ix.Lookup(ix.keysFor(value.ObjectVal(docWithName("pavel")))[0])
	require.NoError(t, err)
	require.Len(t, ids, 1)
	ids, err = ix.Lookup(ix.keysFor(value.ObjectVal(docWithName("ivan")))[0])
	require.NoError(t, err)
	require.Equal(t, []bson.ObjectID{idB}, ids)
}

func TestIndex_I64RangeLookup(t *testing.T) {
	m := newTestManager(t)
	_, err := m.EnsureIndex(value.CompilePath("age"), query.IndexKindI64, Duplicate)
	require.NoError(t, err)

	for _, age := range []int64{10, 20, 30, 40} {
		o := value.NewObject()
		o.Set("age", value.I64(age))
		require.NoError(t, m.InsertDoc(bson.NewObjectID(), value.ObjectVal(o)))
	}

	ix, _ := m.Get("age")
	ids, err := ix.LookupRange(EncodeI64Key(15), EncodeI64Key(35))
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestKeyEncoding_PreservesOrder(t *testing.T) {
	vals := []int64{-100, -1, 0, 1, 100}
	var prev []byte
	for _, v := range vals {
		k := EncodeI64Key(v)
		if prev != nil {
			require.True(t, string(prev) < string(k))
		}
		require.Equal(t, v, DecodeI64Key(k))
		prev = k
	}

	fvals := []float64{-3.5, -0.5, 0, 0.5, 3.5}
	var prevF []byte
	for _, v := range fvals {
		k := EncodeF64Key(v)
		if prevF != nil {
			require.True(t, string(prevF) < string(k))
		}
		require.InDelta(t, v, DecodeF64Key(k), 0.0001)
		prevF = k
	}
}

package sortx

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

func doc(name string, n int64) value.Value {
	o := value.NewObject()
	o.Set("name", value.String(name))
	o.Set("n", value.I64(n))
	return value.ObjectVal(o)
}

func orderBy(path string, desc bool) query.OrderByKey {
	return query.OrderByKey{Path: value.CompilePath(path), Descending: desc}
}

func TestSorter_InMemory_SortAscending(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	ids := []bson.ObjectID{bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()}
	require.Equal(t, 1, s.Write(ids[0], doc("c", 3)))
	require.Equal(t, 1, s.Write(ids[1], doc("a", 1)))
	require.Equal(t, 1, s.Write(ids[2], doc("b", 2)))
	require.NoError(t, s.Err())

	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", false)}))

	var got []int64
	err := s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		v, _ := d.AsObject().Get("n")
		got = append(got, v.AsI64())
		return 1
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestSorter_Descending(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	s.Write(bson.NewObjectID(), doc("a", 1))
	s.Write(bson.NewObjectID(), doc("b", 2))
	s.Write(bson.NewObjectID(), doc("c", 3))
	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", true)}))

	var got []int64
	s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		v, _ := d.AsObject().Get("n")
		got = append(got, v.AsI64())
		return 1
	})
	require.Equal(t, []int64{3, 2, 1}, got)
}

func TestSorter_MultiKey(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	s.Write(bson.NewObjectID(), doc("b", 1))
	s.Write(bson.NewObjectID(), doc("a", 1))
	s.Write(bson.NewObjectID(), doc("a", 0))
	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", false), orderBy("name", false)}))

	var names []string
	s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		v, _ := d.AsObject().Get("name")
		names = append(names, v.AsString())
		return 1
	})
	require.Equal(t, []string{"a", "a", "b"}, names)
}

func TestSorter_SkipAndMax(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	for i := int64(0); i < 5; i++ {
		s.Write(bson.NewObjectID(), doc("x", i))
	}
	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", false)}))

	var got []int64
	s.Drain(1, 2, func(id bson.ObjectID, d value.Value) int {
		v, _ := d.AsObject().Get("n")
		got = append(got, v.AsI64())
		return 1
	})
	require.Equal(t, []int64{1, 2}, got)
}

func TestSorter_DrainStopsOnZeroStep(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	for i := int64(0); i < 5; i++ {
		s.Write(bson.NewObjectID(), doc("x", i))
	}
	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", false)}))

	count := 0
	s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		count++
		if count == 2 {
			return 0
		}
		return 1
	})
	require.Equal(t, 2, count)
}

func TestSorter_SpillsToMmapOnOverflow(t *testing.T) {
	s := New(Options{HighWaterMark: 64})
	defer s.Close()

	for i := int64(0); i < 20; i++ {
		step := s.Write(bson.NewObjectID(), doc("spill-test-name", i))
		require.Equal(t, 1, step)
	}
	require.NoError(t, s.Err())
	require.NotNil(t, s.mm, "expected the sorter to have spilled to a temp file mmap")

	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", true)}))

	var got []int64
	err := s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		v, _ := d.AsObject().Get("n")
		got = append(got, v.AsI64())
		return 1
	})
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i := 0; i < 20; i++ {
		require.Equal(t, int64(19-i), got[i])
	}
}

func TestSorter_SpillGrowsPastInitialMmapSize(t *testing.T) {
	s := New(Options{HighWaterMark: 64})
	defer s.Close()

	for i := int64(0); i < 200; i++ {
		require.Equal(t, 1, s.Write(bson.NewObjectID(), doc("growth-probe", i)))
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Sort(nil))
	require.Equal(t, 200, s.Len())
}

func TestSorter_MissingOrderByFieldSortsFirst(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	withField := value.NewObject()
	withField.Set("n", value.I64(1))
	withoutField := value.NewObject()
	withoutField.Set("other", value.String("x"))

	s.Write(bson.NewObjectID(), value.ObjectVal(withField))
	s.Write(bson.NewObjectID(), value.ObjectVal(withoutField))
	require.NoError(t, s.Sort([]query.OrderByKey{orderBy("n", false)}))

	var kinds []value.Kind
	s.Drain(0, 0, func(id bson.ObjectID, d value.Value) int {
		v, ok := d.AsObject().Get("n")
		if !ok {
			kinds = append(kinds, value.KindUndefined)
		} else {
			kinds = append(kinds, v.Kind())
		}
		return 1
	})
	require.Equal(t, value.KindUndefined, kinds[0])
}

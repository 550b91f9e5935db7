package driver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/collection"
	"github.com/nimbusdb/nimbusdb/internal/consumer"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

func authorDoc(name string, age int64) value.Value {
	o := value.NewObject()
	o.Set("name", value.String(name))
	o.Set("age", value.I64(age))
	return value.ObjectVal(o)
}

func queryBytes(t *testing.T, o *value.Object) []byte {
	t.Helper()
	raw, err := value.Encode(value.ObjectVal(o))
	require.NoError(t, err)
	return raw
}

type recordingVisitor struct {
	ids  []bson.ObjectID
	docs []value.Value
}

func (v *recordingVisitor) Visit(id bson.ObjectID, doc value.Value) int {
	v.ids = append(v.ids, id)
	v.docs = append(v.docs, doc)
	return 1
}

func newTestRegistry(t *testing.T) *collection.Registry {
	t.Helper()
	r, err := collection.OpenRegistry(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func seedAuthors(t *testing.T, r *collection.Registry) map[string]bson.ObjectID {
	t.Helper()
	c, err := r.Ensure("authors")
	require.NoError(t, err)

	ids := make(map[string]bson.ObjectID)
	for name, age := range map[string]int64{"tolstoy": 82, "chekhov": 44, "gogol": 42} {
		id := value.NewObjectID()
		require.NoError(t, c.Primary.Put(id, authorDoc(name, age)))
		ids[name] = id
	}
	return ids
}

func TestDriver_FullScanFilter(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	q.Set("age", value.I64(44))
	visitor := &recordingVisitor{}

	res, err := d.Exec("authors", queryBytes(t, q), nil, visitor)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Len(t, visitor.docs, 1)
	name, _ := visitor.docs[0].AsObject().Get("name")
	require.Equal(t, "chekhov", name.AsString())
}

func TestDriver_UnknownCollection(t *testing.T) {
	r := newTestRegistry(t)
	d := New(r, nil)

	q := value.NewObject()
	_, err := d.Exec("nope", queryBytes(t, q), nil, nil)
	require.Error(t, err)
}

func TestDriver_OrderBySortsAcrossFullScan(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	orderby := value.NewObject()
	orderby.Set("age", value.I64(1))
	q.Set("$orderby", value.ObjectVal(orderby))

	visitor := &recordingVisitor{}
	res, err := d.Exec("authors", queryBytes(t, q), nil, visitor)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)

	var ages []int64
	for _, doc := range visitor.docs {
		a, _ := doc.AsObject().Get("age")
		ages = append(ages, a.AsI64())
	}
	require.Equal(t, []int64{42, 44, 82}, ages)
}

func TestDriver_OrderByWithSkipMax(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	orderby := value.NewObject()
	orderby.Set("age", value.I64(1))
	q.Set("$orderby", value.ObjectVal(orderby))
	q.Set("$skip", value.I64(1))
	q.Set("$max", value.I64(1))

	visitor := &recordingVisitor{}
	res, err := d.Exec("authors", queryBytes(t, q), nil, visitor)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	a, _ := visitor.docs[0].AsObject().Get("age")
	require.Equal(t, int64(44), a.AsI64())
}

func TestDriver_HintMergesOrderBy(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	hint := value.NewObject()
	orderby := value.NewObject()
	orderby.Set("age", value.I64(-1))
	hint.Set("$orderby", value.ObjectVal(orderby))

	visitor := &recordingVisitor{}
	res, err := d.Exec("authors", queryBytes(t, q), queryBytes(t, hint), visitor)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)

	var ages []int64
	for _, doc := range visitor.docs {
		a, _ := doc.AsObject().Get("age")
		ages = append(ages, a.AsI64())
	}
	require.Equal(t, []int64{82, 44, 42}, ages)
}

func TestDriver_SetMutatesAndIndexesStayConsistent(t *testing.T) {
	r := newTestRegistry(t)
	ids := seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	q.Set("name", value.String("gogol"))
	set := value.NewObject()
	set.Set("age", value.I64(43))
	q.Set("$set", value.ObjectVal(set))

	res, err := d.Exec("authors", queryBytes(t, q), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	c, ok := r.Get("authors")
	require.True(t, ok)
	got, ok, err := c.Primary.Get(ids["gogol"])
	require.NoError(t, err)
	require.True(t, ok)
	age, _ := got.AsObject().Get("age")
	require.Equal(t, int64(43), age.AsI64())
}

func TestDriver_UpsertOnZeroMatches(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	q.Set("name", value.String("nobody"))
	upsert := value.NewObject()
	upsert.Set("name", value.String("pushkin"))
	q.Set("$upsert", value.ObjectVal(upsert))

	res, err := d.Exec("authors", queryBytes(t, q), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.Count)
	require.True(t, res.Upserted)

	c, ok := r.Get("authors")
	require.True(t, ok)
	got, ok, err := c.Primary.Get(res.UpsertedID)
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := got.AsObject().Get("name")
	require.Equal(t, "pushkin", name.AsString())
}

func TestDriver_ExecValue(t *testing.T) {
	r := newTestRegistry(t)
	seedAuthors(t, r)
	d := New(r, nil)

	q := value.NewObject()
	q.Set("name", value.String("tolstoy"))

	res, err := d.ExecValue("authors", value.ObjectVal(q), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
}

var _ consumer.Visitor = (*recordingVisitor)(nil)

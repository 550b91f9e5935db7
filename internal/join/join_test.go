package join

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

type fakeStore struct {
	docs  map[string]map[bson.ObjectID]value.Value
	calls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]map[bson.ObjectID]value.Value{}}
}

func (s *fakeStore) put(collection string, id bson.ObjectID, doc value.Value) {
	if s.docs[collection] == nil {
		s.docs[collection] = map[bson.ObjectID]value.Value{}
	}
	s.docs[collection][id] = doc
}

func (s *fakeStore) Get(collection string, id bson.ObjectID) (value.Value, bool, error) {
	s.calls++
	d, ok := s.docs[collection][id]
	return d, ok, nil
}

func authorDoc(name string) value.Value {
	o := value.NewObject()
	o.Set("name", value.String(name))
	return value.ObjectVal(o)
}

func TestResolver_NativeOID(t *testing.T) {
	store := newFakeStore()
	id := bson.NewObjectID()
	store.put("authors", id, authorDoc("tolstoy"))

	r := NewResolver(store)
	doc, ok := r.Resolve("authors", value.OID(id))
	require.True(t, ok)
	name, _ := doc.AsObject().Get("name")
	require.Equal(t, "tolstoy", name.AsString())
}

func TestResolver_HexString(t *testing.T) {
	store := newFakeStore()
	id := bson.NewObjectID()
	store.put("authors", id, authorDoc("tolstoy"))

	r := NewResolver(store)
	doc, ok := r.Resolve("authors", value.String(id.Hex()))
	require.True(t, ok)
	name, _ := doc.AsObject().Get("name")
	require.Equal(t, "tolstoy", name.AsString())
}

func TestResolver_UnresolvableKind(t *testing.T) {
	r := NewResolver(newFakeStore())
	_, ok := r.Resolve("authors", value.I64(5))
	require.False(t, ok)
}

func TestResolver_MalformedHex(t *testing.T) {
	r := NewResolver(newFakeStore())
	_, ok := r.Resolve("authors", value.String("not-a-valid-oid"))
	require.False(t, ok)
}

func TestResolver_CachesHitsAndMisses(t *testing.T) {
	store := newFakeStore()
	id := bson.NewObjectID()
	store.put("authors", id, authorDoc("tolstoy"))
	missID := bson.NewObjectID()

	r := NewResolver(store)

	_, ok := r.Resolve("authors", value.OID(id))
	require.True(t, ok)
	_, ok = r.Resolve("authors", value.OID(id))
	require.True(t, ok)

	_, ok = r.Resolve("authors", value.OID(missID))
	require.False(t, ok)
	_, ok = r.Resolve("authors", value.OID(missID))
	require.False(t, ok)

	require.Equal(t, 2, store.calls) // one real lookup per distinct id, repeats served from cache
}

func TestResolver_SeparatesCollections(t *testing.T) {
	store := newFakeStore()
	id := bson.NewObjectID()
	store.put("authors", id, authorDoc("tolstoy"))
	store.put("editors", id, authorDoc("someone-else"))

	r := NewResolver(store)
	a, ok := r.Resolve("authors", value.OID(id))
	require.True(t, ok)
	e, ok := r.Resolve("editors", value.OID(id))
	require.True(t, ok)

	an, _ := a.AsObject().Get("name")
	en, _ := e.AsObject().Get("name")
	require.NotEqual(t, an.AsString(), en.AsString())
}

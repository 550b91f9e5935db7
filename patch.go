package nimbusdb

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// Patch applies a JSON merge patch (RFC 7396) to the document at id in
// coll: every key in patch overwrites the corresponding key in the
// stored document, a null value deletes the key, and a nested object
// value merges recursively rather than replacing its sibling keys
// wholesale. When upsert is true and id has no existing document, the
// patch is applied against an empty object, so the patch document itself
// becomes the new document (minus any of its own null-valued keys).
// Matches patch().
func (db *DB) Patch(coll string, id bson.ObjectID, patch value.Value, upsert bool) error {
	if patch.Kind() != value.KindObject {
		return ErrPatchNotObject
	}

	c, err := db.collection(coll)
	if err != nil {
		return err
	}

	c.Lock.Lock()
	defer c.Lock.Unlock()

	old, existed, err := c.Primary.Get(id)
	if err != nil {
		return err
	}
	if !existed {
		if !upsert {
			return ErrDocumentNotFound
		}
		old = value.ObjectVal(value.NewObject())
	}

	merged := value.ObjectVal(mergePatch(old.AsObject(), patch.AsObject()))

	if err := c.Primary.Put(id, merged); err != nil {
		return err
	}
	if existed {
		return c.Indexes.UpdateDoc(id, old, merged)
	}
	return c.Indexes.InsertDoc(id, merged)
}

// mergePatch implements RFC 7396 merge-patch semantics: target is cloned,
// then each key of patch is applied in turn — a null value deletes the
// key, an object value merges recursively against target's existing
// value for that key (or an empty object if target had none), and any
// other value replaces target's key outright.
func mergePatch(target, patch *value.Object) *value.Object {
	result := target.Clone()
	for _, key := range patch.Keys() {
		pv, _ := patch.Get(key)
		if pv.Kind() == value.KindNull {
			result.Delete(key)
			continue
		}
		if pv.Kind() == value.KindObject {
			existing, ok := result.Get(key)
			var base *value.Object
			if ok && existing.Kind() == value.KindObject {
				base = existing.AsObject()
			} else {
				base = value.NewObject()
			}
			result.Set(key, value.ObjectVal(mergePatch(base, pv.AsObject())))
			continue
		}
		result.Set(key, pv)
	}
	return result
}

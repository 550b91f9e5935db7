package value

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNotObject is returned by Decode when the top-level BSON value is not
// a document, since NimbusDB documents are always rooted objects.
var ErrNotObject = errors.New("value: root bson value is not a document")

// Encode serialises doc (which must be KindObject) to BSON bytes using
// go.mongodb.org/mongo-driver/v2/bson. This is the byte form persisted by
// the primary store and transmitted to/from query_exec callers.
func Encode(doc Value) ([]byte, error) {
	if doc.Kind() != KindObject {
		return nil, ErrNotObject
	}
	d := toBSOND(doc.AsObject())
	return bson.Marshal(d)
}

// Decode parses BSON bytes into a rooted object Value.
func Decode(raw []byte) (Value, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return Value{}, errors.Wrap(err, "value: bson unmarshal")
	}
	return fromBSOND(d), nil
}

func toBSOND(o *Object) bson.D {
	d := make(bson.D, 0, o.Len())
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		d = append(d, bson.E{Key: k, Value: toBSONAny(v)})
	}
	return d
}

func toBSONAny(v Value) any {
	switch v.Kind() {
	case KindNull, KindUndefined:
		return nil
	case KindBool:
		return v.AsBool()
	case KindI64:
		return v.AsI64()
	case KindF64:
		return v.AsF64()
	case KindString:
		return v.AsString()
	case KindSymbol:
		return bson.Symbol(v.AsSymbol())
	case KindBinary:
		return bson.Binary{Subtype: 0x00, Data: v.AsBinary()}
	case KindObjectID:
		return v.AsObjectID()
	case KindRegex:
		re := v.AsRegex()
		return bson.Regex{Pattern: re.Pattern, Options: re.Flags}
	case KindDate:
		return bson.NewDateTimeFromTime(time.UnixMilli(v.AsDateMillis()))
	case KindObject:
		return toBSOND(v.AsObject())
	case KindArray:
		arr := v.AsArray()
		out := make(bson.A, len(arr))
		for i, e := range arr {
			out[i] = toBSONAny(e)
		}
		return out
	default:
		return nil
	}
}

func fromBSOND(d bson.D) Value {
	obj := NewObject()
	for _, e := range d {
		obj.Set(e.Key, fromBSONAny(e.Value))
	}
	return ObjectVal(obj)
}

func fromBSONAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int32:
		return I64(int64(t))
	case int64:
		return I64(t)
	case int:
		return I64(int64(t))
	case float64:
		return F64(t)
	case string:
		return String(t)
	case bson.Symbol:
		return Symbol(string(t))
	case bson.Binary:
		return Binary(t.Data)
	case bson.ObjectID:
		return OID(t)
	case bson.Regex:
		return NewRegex(t.Pattern, t.Options)
	case bson.DateTime:
		return Date(int64(t))
	case time.Time:
		return Date(t.UnixMilli())
	case bson.D:
		return fromBSOND(t)
	case bson.M:
		obj := NewObject()
		for k, val := range t {
			obj.Set(k, fromBSONAny(val))
		}
		return ObjectVal(obj)
	case bson.A:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = fromBSONAny(e)
		}
		return Array(out)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = fromBSONAny(e)
		}
		return Array(out)
	default:
		return Null()
	}
}

// NewObjectID generates a fresh document identifier, a 12-byte opaque id.
func NewObjectID() bson.ObjectID {
	return bson.NewObjectID()
}

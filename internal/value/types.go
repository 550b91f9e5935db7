package value

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	// KindNull is the BSON null type.
	KindNull Kind = iota
	// KindBool is a boolean scalar.
	KindBool
	// KindI64 is a 64-bit signed integer (also used for 32-bit ints, widened).
	KindI64
	// KindF64 is a double-precision float.
	KindF64
	// KindString is a UTF-8 string.
	KindString
	// KindBinary is an opaque byte string.
	KindBinary
	// KindObject is an ordered map from field name to Value.
	KindObject
	// KindArray is an ordered list of Value.
	KindArray
	// KindObjectID is a 12-byte document identifier.
	KindObjectID
	// KindRegex is a regular expression with flags.
	KindRegex
	// KindSymbol is a BSON symbol (legacy interned string).
	KindSymbol
	// KindDate is a millisecond-precision UTC timestamp.
	KindDate
	// KindUndefined marks a field slot vacated by $unset inside an array.
	KindUndefined
)

// String returns a short name for the kind, used in diagnostics and errors.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindObjectID:
		return "oid"
	case KindRegex:
		return "regex"
	case KindSymbol:
		return "symbol"
	case KindDate:
		return "date"
	case KindUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// typeRank gives the BSON cross-type comparison order: null < numbers <
// string and symbol (one rank) < object < array < binary < oid < bool <
// date < regex.
// Within the numeric rank, i64 and f64 compare numerically against each
// other rather than by rank.
func (k Kind) typeRank() int {
	switch k {
	case KindNull, KindUndefined:
		return 0
	case KindI64, KindF64:
		return 10
	case KindString, KindSymbol:
		return 20
	case KindObject:
		return 30
	case KindArray:
		return 40
	case KindBinary:
		return 50
	case KindObjectID:
		return 60
	case KindBool:
		return 70
	case KindDate:
		return 80
	case KindRegex:
		return 90
	default:
		return 100
	}
}

// Regex carries a regular expression value: a pattern plus BSON-style
// single-character flags (i, m, x, s).
type Regex struct {
	Pattern string
	Flags   string
}

// Value is a tagged union over every BSON scalar/composite type NimbusDB
// documents may contain at a path. The zero Value is KindNull.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	bin    []byte
	obj    *Object
	arr    []Value
	oid    bson.ObjectID
	re     Regex
	symbol string
	date   int64 // milliseconds since epoch, matches bson.DateTime
}

// Object is an ordered map from field name to Value: insertion order is
// preserved because object comparison is defined as
// lexicographic traversal of key/value pairs in document order, and
// projection/update operators must echo the field order they found.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject creates an empty, ordered Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set assigns value to key, appending key to the iteration order the first
// time it is seen and leaving the existing position unchanged on update.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value at key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key from the object, preserving the order of the rest.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in document order.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	out := NewObject()
	for _, k := range o.keys {
		out.Set(k, o.values[k].Clone())
	}
	return out
}

// Constructors.

func Null() Value               { return Value{kind: KindNull} }
func Undefined() Value          { return Value{kind: KindUndefined} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func I64(i int64) Value         { return Value{kind: KindI64, i: i} }
func F64(f float64) Value       { return Value{kind: KindF64, f: f} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Symbol(s string) Value     { return Value{kind: KindSymbol, symbol: s} }
func Binary(b []byte) Value     { return Value{kind: KindBinary, bin: b} }
func ObjectVal(o *Object) Value { return Value{kind: KindObject, obj: o} }
func Array(vs []Value) Value    { return Value{kind: KindArray, arr: vs} }
func OID(id bson.ObjectID) Value {
	return Value{kind: KindObjectID, oid: id}
}
func NewRegex(pattern, flags string) Value {
	return Value{kind: KindRegex, re: Regex{Pattern: pattern, Flags: flags}}
}
func Date(millis int64) Value { return Value{kind: KindDate, date: millis} }

// Kind returns the value's dynamic type.
func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() bool            { return v.b }
func (v Value) AsI64() int64            { return v.i }
func (v Value) AsF64() float64          { return v.f }
func (v Value) AsString() string        { return v.s }
func (v Value) AsSymbol() string        { return v.symbol }
func (v Value) AsBinary() []byte        { return v.bin }
func (v Value) AsObject() *Object       { return v.obj }
func (v Value) AsArray() []Value        { return v.arr }
func (v Value) AsObjectID() bson.ObjectID { return v.oid }
func (v Value) AsRegex() Regex          { return v.re }
func (v Value) AsDateMillis() int64     { return v.date }

// IsNumeric reports whether the value is i64 or f64.
func (v Value) IsNumeric() bool { return v.kind == KindI64 || v.kind == KindF64 }

// AsFloat widens any numeric kind to float64; it returns (0, false) for
// non-numeric values.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindI64:
		return float64(v.i), true
	case KindF64:
		return v.f, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy, recursing into objects and arrays.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		return ObjectVal(v.obj.Clone())
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Array(out)
	case KindBinary:
		out := make([]byte, len(v.bin))
		copy(out, v.bin)
		return Binary(out)
	default:
		return v
	}
}

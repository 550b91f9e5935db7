package consumer

import (
	"strconv"

	"github.com/nimbusdb/nimbusdb/internal/query"
	"github.com/nimbusdb/nimbusdb/internal/value"
)

// project produces the pruned/joined copy of a result document: apply
// $fields inclusion/exclusion first, then resolve every $do.<field>.$join
// and $do.<field>.$slice clause against the pruned copy.
func project(doc value.Value, a *query.Apply, joiner Joiner) value.Value {
	out := doc
	if a.Fields != nil {
		out = applyFieldProjection(out, a.Fields)
	}
	if len(a.Joins) == 0 {
		return out
	}

	if out.Kind() != value.KindObject {
		return out
	}
	root := out.AsObject().Clone()
	for _, j := range a.Joins {
		if j.Collection != "" {
			mutateAtPath(root, j.Path, func(v value.Value) value.Value {
				return resolveJoin(v, j.Collection, joiner)
			})
		}
		if j.HasSlice {
			mutateAtPath(root, j.Path, func(v value.Value) value.Value {
				return sliceArray(v, j.SliceFrom, j.SliceTo)
			})
		}
	}
	return value.ObjectVal(root)
}

// applyFieldProjection implements $fields: Include keeps only the named
// paths (building a fresh, pruned object), Exclude keeps everything except
// the named paths. The two are mutually exclusive by construction (the
// parser rejects mixing them).
func applyFieldProjection(doc value.Value, f *query.FieldProjection) value.Value {
	if doc.Kind() != value.KindObject {
		return doc
	}
	if len(f.Include) > 0 {
		out := value.NewObject()
		for _, p := range f.Include {
			if v, ok := getAtPath(doc, p.Segments()); ok {
				setAtPath(out, p.Segments(), v)
			}
		}
		return value.ObjectVal(out)
	}
	if len(f.Exclude) > 0 {
		out := doc.AsObject().Clone()
		for _, p := range f.Exclude {
			deleteAtPath(out, p.Segments())
		}
		return value.ObjectVal(out)
	}
	return doc
}

// resolveJoin replaces a scalar id (or, element-wise, every id in an
// array) with the document Joiner resolves it to; an id that doesn't
// resolve, or a nil Joiner, is left as-is.
func resolveJoin(v value.Value, collection string, joiner Joiner) value.Value {
	if joiner == nil {
		return v
	}
	if v.Kind() == value.KindArray {
		arr := v.AsArray()
		out := make([]value.Value, len(arr))
		for i, e := range arr {
			if resolved, ok := joiner.Resolve(collection, e); ok {
				out[i] = resolved
			} else {
				out[i] = e
			}
		}
		return value.Array(out)
	}
	if resolved, ok := joiner.Resolve(collection, v); ok {
		return resolved
	}
	return v
}

// sliceArray implements $do.<field>.$slice: from/to follow Python-style
// negative-index-from-end and out-of-range clamping.
func sliceArray(v value.Value, from, to int) value.Value {
	if v.Kind() != value.KindArray {
		return v
	}
	arr := v.AsArray()
	n := len(arr)
	f := clampSliceIndex(from, n)
	t := clampSliceIndex(to, n)
	if f > t {
		f = t
	}
	return value.Array(append([]value.Value(nil), arr[f:t]...))
}

func clampSliceIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	if i > n {
		i = n
	}
	return i
}

// getAtPath navigates doc by segs without creating anything, mirroring
// query.navigateToParent's traversal rule but returning the leaf itself.
func getAtPath(doc value.Value, segs []string) (value.Value, bool) {
	if len(segs) == 0 {
		return doc, true
	}
	seg := segs[0]
	switch doc.Kind() {
	case value.KindObject:
		v, ok := doc.AsObject().Get(seg)
		if !ok {
			return value.Value{}, false
		}
		return getAtPath(v, segs[1:])
	case value.KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return value.Value{}, false
		}
		arr := doc.AsArray()
		if idx < 0 || idx >= len(arr) {
			return value.Value{}, false
		}
		return getAtPath(arr[idx], segs[1:])
	default:
		return value.Value{}, false
	}
}

// setAtPath writes v into root at segs, auto-creating intermediate
// objects (never arrays: field-inclusion projection only ever rebuilds
// object nesting, since segs came from a path that already resolved
// against the source document in getAtPath).
func setAtPath(root *value.Object, segs []string, v value.Value) {
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		root.Set(segs[0], v)
		return
	}
	var child *value.Object
	if cur, ok := root.Get(segs[0]); ok && cur.Kind() == value.KindObject {
		child = cur.AsObject()
	} else {
		child = value.NewObject()
	}
	setAtPath(child, segs[1:], v)
	root.Set(segs[0], value.ObjectVal(child))
}

// deleteAtPath removes the field named by the last segment of segs,
// descending through existing nested objects only.
func deleteAtPath(obj *value.Object, segs []string) {
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 {
		obj.Delete(segs[0])
		return
	}
	child, ok := obj.Get(segs[0])
	if !ok || child.Kind() != value.KindObject {
		return
	}
	deleteAtPath(child.AsObject(), segs[1:])
}

// mutateAtPath applies fn to the value at path within root, auto-creating
// nothing: a path through a missing field leaves root unchanged (a join
// or slice clause naming an absent field is a no-op).
func mutateAtPath(root *value.Object, path value.Path, fn func(value.Value) value.Value) {
	segs := path.Segments()
	if len(segs) == 0 {
		return
	}
	first := segs[0]
	child, ok := root.Get(first)
	if !ok {
		return
	}
	root.Set(first, mutateValue(child, segs[1:], fn))
}

func mutateValue(cur value.Value, segs []string, fn func(value.Value) value.Value) value.Value {
	if len(segs) == 0 {
		return fn(cur)
	}
	seg := segs[0]
	switch cur.Kind() {
	case value.KindObject:
		obj := cur.AsObject()
		child, ok := obj.Get(seg)
		if !ok {
			return cur
		}
		obj.Set(seg, mutateValue(child, segs[1:], fn))
		return value.ObjectVal(obj)
	case value.KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return cur
		}
		arr := cur.AsArray()
		if idx < 0 || idx >= len(arr) {
			return cur
		}
		arr[idx] = mutateValue(arr[idx], segs[1:], fn)
		return value.Array(arr)
	default:
		return cur
	}
}

package query

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// ErrNotNumeric is returned when $inc targets a path whose existing value
// is neither absent nor numeric.
var ErrNotNumeric = errors.New("query: $inc target is not numeric")

// ApplyMutations mutates doc in place per a's update operators. The caller is responsible for cloning doc beforehand (the
// consumer pipeline does this before index maintenance) and for rolling
// the clone back on error; ApplyMutations itself does not undo partial
// writes.
//
// Missing intermediate objects are auto-created along every path; a
// numeric path segment creates an array slot when the current value is
// already an array (or absent), and an object field otherwise, mirroring
// value.Resolve's own numeric-segment rule.
func ApplyMutations(doc *value.Object, a *Apply) error {
	if a == nil {
		return nil
	}

	for path, rhs := range a.Set {
		setDocPath(doc, value.CompilePath(path), func(value.Value) value.Value { return rhs })
	}

	for path, delta := range a.Inc {
		if err := incDocPath(doc, value.CompilePath(path), delta); err != nil {
			return err
		}
	}

	for _, path := range a.Unset {
		unsetDocPath(doc, path)
	}

	for oldPath, newName := range a.Rename {
		renameDocPath(doc, oldPath, newName)
	}

	for path, rhs := range a.AddToSet {
		addToSetDocPath(doc, value.CompilePath(path), []value.Value{rhs})
	}
	for path, rhs := range a.AddToSetAll {
		addToSetDocPath(doc, value.CompilePath(path), rhs)
	}

	for path, rhs := range a.Push {
		pushDocPath(doc, value.CompilePath(path), []value.Value{rhs})
	}
	for path, rhs := range a.PushAll {
		pushDocPath(doc, value.CompilePath(path), rhs)
	}

	for path, rhs := range a.Pull {
		pullDocPath(doc, value.CompilePath(path), []value.Value{rhs})
	}
	for path, rhs := range a.PullAll {
		pullDocPath(doc, value.CompilePath(path), rhs)
	}

	return nil
}

// setPath returns the value that should replace cur after applying leafOp
// at the position named by segs, auto-creating missing intermediates.
func setPath(cur value.Value, segs []string, leafOp func(value.Value) value.Value) value.Value {
	if len(segs) == 0 {
		return leafOp(cur)
	}
	seg := segs[0]
	rest := segs[1:]

	if isArraySegment(cur, seg) {
		idx, _ := strconv.Atoi(seg)
		if idx < 0 {
			idx = 0
		}
		var arr []value.Value
		if cur.Kind() == value.KindArray {
			arr = append([]value.Value(nil), cur.AsArray()...)
		}
		for len(arr) <= idx {
			arr = append(arr, value.Undefined())
		}
		arr[idx] = setPath(arr[idx], rest, leafOp)
		return value.Array(arr)
	}

	var obj *value.Object
	if cur.Kind() == value.KindObject {
		obj = cur.AsObject()
	} else {
		obj = value.NewObject()
	}
	child, _ := obj.Get(seg)
	obj.Set(seg, setPath(child, rest, leafOp))
	return value.ObjectVal(obj)
}

// isArraySegment reports whether seg should index into an array at cur:
// true when seg is a decimal literal and cur is already an array, or
// absent entirely (a fresh path defaults to building an array). A numeric
// segment against an existing object is a field name, matching
// value.Resolve's own rule.
func isArraySegment(cur value.Value, seg string) bool {
	if _, err := strconv.Atoi(seg); err != nil {
		return false
	}
	return cur.Kind() != value.KindObject
}

func setDocPath(doc *value.Object, path value.Path, leafOp func(value.Value) value.Value) {
	segs := path.Segments()
	if len(segs) == 0 {
		return
	}
	first := segs[0]
	child, _ := doc.Get(first)
	doc.Set(first, setPath(child, segs[1:], leafOp))
}

func incDocPath(doc *value.Object, path value.Path, delta value.Value) error {
	var incErr error
	setDocPath(doc, path, func(cur value.Value) value.Value {
		if cur.Kind() == value.KindNull || cur.Kind() == value.KindUndefined {
			return delta
		}
		if !cur.IsNumeric() {
			incErr = ErrNotNumeric
			return cur
		}
		if cur.Kind() == value.KindI64 && delta.Kind() == value.KindI64 {
			return value.I64(cur.AsI64() + delta.AsI64())
		}
		cf, _ := cur.AsFloat()
		df, _ := delta.AsFloat()
		return value.F64(cf + df)
	})
	return incErr
}

// navigateToParent walks segs[:-1] without creating missing intermediates
// and returns the container holding the final segment, plus that
// segment's literal name/index, for $unset and $rename.
func navigateToParent(cur value.Value, segs []string) (value.Value, string, bool) {
	if len(segs) == 1 {
		return cur, segs[0], true
	}
	seg := segs[0]
	rest := segs[1:]
	switch cur.Kind() {
	case value.KindObject:
		child, ok := cur.AsObject().Get(seg)
		if !ok {
			return value.Value{}, "", false
		}
		return navigateToParent(child, rest)
	case value.KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return value.Value{}, "", false
		}
		arr := cur.AsArray()
		if idx < 0 || idx >= len(arr) {
			return value.Value{}, "", false
		}
		return navigateToParent(arr[idx], rest)
	default:
		return value.Value{}, "", false
	}
}

func unsetDocPath(doc *value.Object, path value.Path) {
	segs := path.Segments()
	if len(segs) == 0 {
		return
	}
	parent, lastKey, ok := navigateToParent(value.ObjectVal(doc), segs)
	if !ok {
		return
	}
	switch parent.Kind() {
	case value.KindObject:
		parent.AsObject().Delete(lastKey)
	case value.KindArray:
		idx, err := strconv.Atoi(lastKey)
		if err == nil {
			arr := parent.AsArray()
			if idx >= 0 && idx < len(arr) {
				arr[idx] = value.Undefined()
			}
		}
	}
}

// renameDocPath moves the value at oldPath to newName within oldPath's
// own parent.
func renameDocPath(doc *value.Object, oldPath, newName string) {
	segs := value.CompilePath(oldPath).Segments()
	if len(segs) == 0 {
		return
	}
	parent, lastKey, ok := navigateToParent(value.ObjectVal(doc), segs)
	if !ok || parent.Kind() != value.KindObject {
		return
	}
	obj := parent.AsObject()
	v, exists := obj.Get(lastKey)
	if !exists {
		return
	}
	obj.Delete(lastKey)
	obj.Set(newName, v)
}

func addToSetDocPath(doc *value.Object, path value.Path, items []value.Value) {
	setDocPath(doc, path, func(cur value.Value) value.Value {
		var arr []value.Value
		if cur.Kind() == value.KindArray {
			arr = append([]value.Value(nil), cur.AsArray()...)
		}
		for _, item := range items {
			if !containsEqual(arr, item, false) {
				arr = append(arr, item)
			}
		}
		return value.Array(arr)
	})
}

func pushDocPath(doc *value.Object, path value.Path, items []value.Value) {
	setDocPath(doc, path, func(cur value.Value) value.Value {
		var arr []value.Value
		if cur.Kind() == value.KindArray {
			arr = append([]value.Value(nil), cur.AsArray()...)
		}
		arr = append(arr, items...)
		return value.Array(arr)
	})
}

func pullDocPath(doc *value.Object, path value.Path, items []value.Value) {
	setDocPath(doc, path, func(cur value.Value) value.Value {
		if cur.Kind() != value.KindArray {
			return cur
		}
		var out []value.Value
		for _, e := range cur.AsArray() {
			if !containsEqual(items, e, false) {
				out = append(out, e)
			}
		}
		return value.Array(out)
	})
}

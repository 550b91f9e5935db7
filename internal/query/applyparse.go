package query

import "github.com/nimbusdb/nimbusdb/internal/value"

// parseApplyClause parses one of the apply/hint clauses ($set, $unset,
// $inc, $rename, $addToSet(All), $push(All), $pull(All), $upsert,
// $dropall, $do, $orderby, $skip, $max, $fields) and attaches it to
// p.apply.
func (p *parseState) parseApplyClause(key string, val value.Value) error {
	a := p.apply

	switch key {
	case "$set":
		m, err := requireFieldMap(val, p.offset, "$set")
		if err != nil {
			return err
		}
		if a.Set == nil {
			a.Set = map[string]value.Value{}
		}
		for k, v := range m {
			a.Set[k] = v
		}

	case "$unset":
		paths, err := unsetPaths(val, p.offset)
		if err != nil {
			return err
		}
		a.Unset = append(a.Unset, paths...)

	case "$inc":
		m, err := requireFieldMap(val, p.offset, "$inc")
		if err != nil {
			return err
		}
		if a.Inc == nil {
			a.Inc = map[string]value.Value{}
		}
		for k, v := range m {
			if !v.IsNumeric() {
				return parseErr(p.offset, "$inc value for %q must be numeric", k)
			}
			a.Inc[k] = v
		}

	case "$rename":
		m, err := requireFieldMap(val, p.offset, "$rename")
		if err != nil {
			return err
		}
		if a.Rename == nil {
			a.Rename = map[string]string{}
		}
		for k, v := range m {
			if v.Kind() != value.KindString {
				return parseErr(p.offset, "$rename target for %q must be a string", k)
			}
			a.Rename[k] = v.AsString()
		}

	case "$addToSet":
		m, err := requireFieldMap(val, p.offset, "$addToSet")
		if err != nil {
			return err
		}
		if a.AddToSet == nil {
			a.AddToSet = map[string]value.Value{}
		}
		for k, v := range m {
			a.AddToSet[k] = v
		}

	case "$addToSetAll":
		m, err := requireFieldArrayMap(val, p.offset, "$addToSetAll")
		if err != nil {
			return err
		}
		if a.AddToSetAll == nil {
			a.AddToSetAll = map[string][]value.Value{}
		}
		for k, v := range m {
			a.AddToSetAll[k] = v
		}

	case "$push":
		m, err := requireFieldMap(val, p.offset, "$push")
		if err != nil {
			return err
		}
		if a.Push == nil {
			a.Push = map[string]value.Value{}
		}
		for k, v := range m {
			a.Push[k] = v
		}

	case "$pushAll":
		m, err := requireFieldArrayMap(val, p.offset, "$pushAll")
		if err != nil {
			return err
		}
		if a.PushAll == nil {
			a.PushAll = map[string][]value.Value{}
		}
		for k, v := range m {
			a.PushAll[k] = v
		}

	case "$pull":
		m, err := requireFieldMap(val, p.offset, "$pull")
		if err != nil {
			return err
		}
		if a.Pull == nil {
			a.Pull = map[string]value.Value{}
		}
		for k, v := range m {
			a.Pull[k] = v
		}

	case "$pullAll":
		m, err := requireFieldArrayMap(val, p.offset, "$pullAll")
		if err != nil {
			return err
		}
		if a.PullAll == nil {
			a.PullAll = map[string][]value.Value{}
		}
		for k, v := range m {
			a.PullAll[k] = v
		}

	case "$upsert":
		if val.Kind() != value.KindObject {
			return parseErr(p.offset, "$upsert requires an object")
		}
		a.Upsert = val.AsObject()

	case "$dropall":
		a.DropAll = true

	case "$do":
		joins, err := parseDo(val, p.offset)
		if err != nil {
			return err
		}
		a.Joins = append(a.Joins, joins...)

	case "$orderby":
		keys, err := parseOrderBy(val, p.offset)
		if err != nil {
			return err
		}
		a.OrderBy = keys

	case "$skip":
		n, err := requireNonNegativeInt(val, p.offset, "$skip")
		if err != nil {
			return err
		}
		a.Skip = n

	case "$max":
		n, err := requireNonNegativeInt(val, p.offset, "$max")
		if err != nil {
			return err
		}
		a.Max = n
		a.HasMax = true

	case "$fields":
		fp, err := parseFields(val, p.offset)
		if err != nil {
			return err
		}
		a.Fields = fp
	}

	return nil
}

func requireFieldMap(v value.Value, offset int, clause string) (map[string]value.Value, error) {
	if v.Kind() != value.KindObject {
		return nil, parseErr(offset, "%s requires an object", clause)
	}
	out := map[string]value.Value{}
	obj := v.AsObject()
	for _, k := range obj.Keys() {
		fv, _ := obj.Get(k)
		out[k] = fv
	}
	return out, nil
}

func requireFieldArrayMap(v value.Value, offset int, clause string) (map[string][]value.Value, error) {
	if v.Kind() != value.KindObject {
		return nil, parseErr(offset, "%s requires an object", clause)
	}
	out := map[string][]value.Value{}
	obj := v.AsObject()
	for _, k := range obj.Keys() {
		fv, _ := obj.Get(k)
		if fv.Kind() != value.KindArray {
			return nil, parseErr(offset, "%s value for %q must be an array", clause, k)
		}
		out[k] = fv.AsArray()
	}
	return out, nil
}

func unsetPaths(v value.Value, offset int) ([]value.Path, error) {
	switch v.Kind() {
	case value.KindObject:
		obj := v.AsObject()
		out := make([]value.Path, 0, obj.Len())
		for _, k := range obj.Keys() {
			out = append(out, value.CompilePath(k))
		}
		return out, nil
	case value.KindArray:
		var out []value.Path
		for _, e := range v.AsArray() {
			if e.Kind() != value.KindString {
				return nil, parseErr(offset, "$unset array elements must be strings")
			}
			out = append(out, value.CompilePath(e.AsString()))
		}
		return out, nil
	default:
		return nil, parseErr(offset, "$unset requires an object or array of paths")
	}
}

func requireNonNegativeInt(v value.Value, offset int, clause string) (int64, error) {
	if !v.IsNumeric() {
		return 0, parseErr(offset, "%s requires a number", clause)
	}
	f, _ := v.AsFloat()
	n := int64(f)
	if n < 0 {
		return 0, parseErr(offset, "%s must not be negative", clause)
	}
	return n, nil
}

func parseOrderBy(v value.Value, offset int) ([]OrderByKey, error) {
	if v.Kind() != value.KindObject {
		return nil, parseErr(offset, "$orderby requires an object")
	}
	obj := v.AsObject()
	out := make([]OrderByKey, 0, obj.Len())
	for _, k := range obj.Keys() {
		sign, _ := obj.Get(k)
		if !sign.IsNumeric() {
			return nil, parseErr(offset, "$orderby sign for %q must be numeric", k)
		}
		f, _ := sign.AsFloat()
		out = append(out, OrderByKey{Path: value.CompilePath(k), Descending: f < 0})
	}
	return out, nil
}

func parseFields(v value.Value, offset int) (*FieldProjection, error) {
	if v.Kind() != value.KindObject {
		return nil, parseErr(offset, "$fields requires an object")
	}
	obj := v.AsObject()
	fp := &FieldProjection{}
	sawInclude, sawExclude := false, false
	for _, k := range obj.Keys() {
		flag, _ := obj.Get(k)
		if !flag.IsNumeric() {
			return nil, parseErr(offset, "$fields value for %q must be 0 or 1", k)
		}
		f, _ := flag.AsFloat()
		if f != 0 {
			fp.Include = append(fp.Include, value.CompilePath(k))
			sawInclude = true
		} else {
			fp.Exclude = append(fp.Exclude, value.CompilePath(k))
			sawExclude = true
		}
	}
	if sawInclude && sawExclude {
		return nil, parseErr(offset, "$fields cannot mix include and exclude")
	}
	return fp, nil
}

func parseDo(v value.Value, offset int) ([]JoinClause, error) {
	if v.Kind() != value.KindObject {
		return nil, parseErr(offset, "$do requires an object")
	}
	obj := v.AsObject()
	out := make([]JoinClause, 0, obj.Len())
	for _, fieldName := range obj.Keys() {
		spec, _ := obj.Get(fieldName)
		if spec.Kind() != value.KindObject {
			return nil, parseErr(offset, "$do.%s requires an object", fieldName)
		}
		specObj := spec.AsObject()
		jc := JoinClause{Path: value.CompilePath(fieldName)}
		if joinVal, ok := specObj.Get("$join"); ok {
			if joinVal.Kind() != value.KindString {
				return nil, parseErr(offset, "$do.%s.$join requires a collection name", fieldName)
			}
			jc.Collection = joinVal.AsString()
		}
		if sliceVal, ok := specObj.Get("$slice"); ok {
			arr := sliceVal.AsArray()
			if sliceVal.Kind() != value.KindArray || len(arr) != 2 {
				return nil, parseErr(offset, "$do.%s.$slice requires a two-element array", fieldName)
			}
			jc.HasSlice = true
			f0, _ := arr[0].AsFloat()
			f1, _ := arr[1].AsFloat()
			jc.SliceFrom = int(f0)
			jc.SliceTo = int(f1)
		}
		out = append(out, jc)
	}
	return out, nil
}

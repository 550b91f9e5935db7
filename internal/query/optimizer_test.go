package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

type fakeIndex struct {
	path     value.Path
	kind     IndexValueKind
	unique   bool
	rowCount int64
}

func (f *fakeIndex) Path() value.Path          { return f.path }
func (f *fakeIndex) ValueKind() IndexValueKind  { return f.kind }
func (f *fakeIndex) Unique() bool               { return f.unique }
func (f *fakeIndex) RowCount() int64            { return f.rowCount }

func parseFilterOnly(t *testing.T, obj *value.Object) *Node {
	t.Helper()
	q, err := ParseValue(value.ObjectVal(obj))
	require.NoError(t, err)
	return q.Root
}

func TestOptimizer_EqualityWinsOverRange(t *testing.T) {
	nameIdx := &fakeIndex{path: value.CompilePath("name"), kind: IndexKindString, unique: true, rowCount: 1000}
	ageIdx := &fakeIndex{path: value.CompilePath("age"), kind: IndexKindI64, rowCount: 1000}

	q := value.NewObject()
	q.Set("name", value.String("Anton"))
	ageOp := value.NewObject()
	ageOp.Set("$gte", value.I64(18))
	q.Set("age", value.ObjectVal(ageOp))

	root := parseFilterOnly(t, q)

	opt := NewOptimizer([]IndexDescriptor{nameIdx, ageIdx}, value.CompilePath("_id"))
	plan := opt.Select(root, nil)

	require.False(t, plan.IsFullScan())
	require.Equal(t, "name", plan.MainIndexPath())
	require.Equal(t, Eq, plan.CursorInit)
}

func TestOptimizer_PrimaryKeyShortcut(t *testing.T) {
	q := value.NewObject()
	q.Set("_id", value.I64(42))

	root := parseFilterOnly(t, q)
	opt := NewOptimizer(nil, value.CompilePath("_id"))
	plan := opt.Select(root, nil)

	require.True(t, plan.UsePrimaryKey)
	require.Len(t, plan.PrimaryKeyIDs, 1)
}

func TestOptimizer_NoIndexFallsBackToFullScan(t *testing.T) {
	q := value.NewObject()
	q.Set("nickname", value.String("x"))

	root := parseFilterOnly(t, q)
	opt := NewOptimizer(nil, value.CompilePath("_id"))
	plan := opt.Select(root, nil)

	require.True(t, plan.IsFullScan())
}

func TestOptimizer_OrderbyWithoutCoveringIndexSetsSortingRequired(t *testing.T) {
	q := value.NewObject()
	q.Set("nickname", value.String("x"))
	root := parseFilterOnly(t, q)

	opt := NewOptimizer(nil, value.CompilePath("_id"))
	plan := opt.Select(root, []OrderByKey{{Path: value.CompilePath("created_at")}})

	require.True(t, plan.SortingRequired)
}

func TestOptimizer_DisjunctionExcludedFromIndexSelection(t *testing.T) {
	nameIdx := &fakeIndex{path: value.CompilePath("name"), kind: IndexKindString, rowCount: 10}

	sub1 := value.NewObject()
	sub1.Set("name", value.String("Anton"))
	sub2 := value.NewObject()
	sub2.Set("name", value.String("Ivan"))
	q := value.NewObject()
	q.Set("$or", value.Array([]value.Value{value.ObjectVal(sub1), value.ObjectVal(sub2)}))

	root := parseFilterOnly(t, q)
	opt := NewOptimizer([]IndexDescriptor{nameIdx}, value.CompilePath("_id"))
	plan := opt.Select(root, nil)

	require.True(t, plan.IsFullScan())
}

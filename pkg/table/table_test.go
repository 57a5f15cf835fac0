package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pitchline/pkg/errors"
)

func buildTeams(t *testing.T, mem memory.Allocator) *Table {
	t.Helper()

	ids := array.NewInt64Builder(mem)
	defer ids.Release()
	ids.AppendValues([]int64{1, 2, 3}, nil)

	names := array.NewStringBuilder(mem)
	defer names.Release()
	names.AppendValues([]string{"Arsenal", "", "Chelsea"}, []bool{true, false, true})

	idArr := ids.NewArray()
	defer idArr.Release()
	nameArr := names.NewArray()
	defer nameArr.Release()

	tbl, err := NewFromColumns("teams", []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, []arrow.Array{idArr, nameArr}, 3)
	require.NoError(t, err)
	return tbl
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		dt   arrow.DataType
		want Kind
	}{
		{arrow.BinaryTypes.String, KindText},
		{arrow.BinaryTypes.LargeString, KindText},
		{arrow.PrimitiveTypes.Int64, KindInteger},
		{arrow.PrimitiveTypes.Int32, KindInteger},
		{arrow.PrimitiveTypes.Int8, KindSmallInteger},
		{arrow.FixedWidthTypes.Boolean, KindBoolean},
		{arrow.PrimitiveTypes.Float64, KindFloat},
		{arrow.ListOf(arrow.BinaryTypes.String), KindNested},
		{arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64}), KindNested},
		{arrow.FixedWidthTypes.Timestamp_us, KindTimestamp},
		{arrow.BinaryTypes.Binary, KindBinary},
		{arrow.Null, KindNull},
		{&arrow.Decimal128Type{Precision: 10, Scale: 2}, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.dt.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.dt))
		})
	}
}

func TestTableAccessors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := buildTeams(t, mem)
	defer tbl.Release()

	assert.Equal(t, "teams", tbl.Name())
	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, []string{"id", "name"}, tbl.ColumnNames())
	assert.Equal(t, 1, tbl.ColumnIndex("name"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
	assert.Equal(t, KindInteger, tbl.Kind(0))

	assert.Equal(t, int64(2), tbl.Value(0, 1))
	assert.Nil(t, tbl.Value(1, 1))
	assert.Equal(t, []interface{}{"Arsenal", nil, "Chelsea"}, tbl.ColumnValues("name"))
	assert.Nil(t, tbl.ColumnValues("missing"))

	desc := tbl.Describe()
	assert.Equal(t, "teams", desc.Name)
	require.Len(t, desc.Fields, 2)
	assert.Equal(t, "text", desc.Fields[1].Type)
}

func TestNewFromColumnsRejectsMismatchedLengths(t *testing.T) {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Append(1)
	arr := b.NewArray()
	defer arr.Release()

	_, err := NewFromColumns("x", []arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64}}, []arrow.Array{arr}, 2)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))

	_, err = NewFromColumns("x", nil, []arrow.Array{arr}, 1)
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	tbl := Empty("phases")
	defer tbl.Release()

	assert.Equal(t, 0, tbl.NumCols())
	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Empty(t, tbl.ColumnNames())
}

func TestFromArrowTableFlattensChunks(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	first := buildTeams(t, mem)
	defer first.Release()
	second := buildTeams(t, mem)
	defer second.Release()

	chunked := array.NewTableFromRecords(first.Schema(), []arrow.Record{first.Record(), second.Record()})
	defer chunked.Release()

	tbl, err := FromArrowTable("teams", chunked, mem)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(6), tbl.NumRows())
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3), int64(1), int64(2), int64(3)}, tbl.ColumnValues("id"))
}

func TestFromArrowTableWithoutRows(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "active", Type: arrow.PrimitiveTypes.Int8, Nullable: true},
	}, nil)
	chunked := array.NewTableFromRecords(schema, nil)
	defer chunked.Release()

	tbl, err := FromArrowTable("empty", chunked, nil)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, []string{"id", "active"}, tbl.ColumnNames())
	assert.Equal(t, KindSmallInteger, tbl.Kind(1))
}

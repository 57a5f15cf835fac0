// Package table provides the in-memory columnar table that flows through a
// pitchline run.
//
// A Table is a named Apache Arrow record. Stages hand tables to each other by
// value of the pointer and a stage that returns a new table releases the one it
// was given, so at any point exactly one stage owns a table.
package table

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/models"
)

// Kind is the coarse type of a column as the rest of the pipeline sees it.
type Kind string

const (
	KindText         Kind = "text"
	KindInteger      Kind = "integer"
	KindSmallInteger Kind = "small_integer"
	KindBoolean      Kind = "boolean"
	KindFloat        Kind = "float"
	KindNested       Kind = "nested"
	KindTimestamp    Kind = "timestamp"
	KindBinary       Kind = "binary"
	KindNull         Kind = "null"
	KindOther        Kind = "other"
)

// KindOf classifies an Arrow data type.
func KindOf(dt arrow.DataType) Kind {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return KindText
	case arrow.INT8:
		return KindSmallInteger
	case arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return KindInteger
	case arrow.BOOL:
		return KindBoolean
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return KindFloat
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.LIST_VIEW,
		arrow.LARGE_LIST_VIEW, arrow.STRUCT, arrow.MAP:
		return KindNested
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return KindTimestamp
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return KindBinary
	case arrow.NULL:
		return KindNull
	default:
		return KindOther
	}
}

// Table is a named, ordered set of equally long typed columns.
type Table struct {
	name   string
	record arrow.Record
}

// New wraps rec. The table takes over the caller's reference to rec.
func New(name string, rec arrow.Record) *Table {
	return &Table{name: name, record: rec}
}

// NewFromColumns builds a table from fields and matching arrays. The arrays
// are retained by the table; callers still release their own references.
func NewFromColumns(name string, fields []arrow.Field, cols []arrow.Array, nrows int64) (*Table, error) {
	if len(fields) != len(cols) {
		return nil, errors.Newf(errors.ErrorTypeInternal, "table %s: %d fields but %d columns", name, len(fields), len(cols))
	}
	for i, c := range cols {
		if int64(c.Len()) != nrows {
			return nil, errors.Newf(errors.ErrorTypeInternal, "table %s: column %s has %d rows, want %d",
				name, fields[i].Name, c.Len(), nrows)
		}
	}
	schema := arrow.NewSchema(fields, nil)
	return New(name, array.NewRecord(schema, cols, nrows)), nil
}

// Empty returns a table with no columns and no rows.
func Empty(name string) *Table {
	return New(name, array.NewRecord(arrow.NewSchema(nil, nil), nil, 0))
}

// FromArrowTable flattens a chunked arrow.Table into a Table.
func FromArrowTable(name string, tbl arrow.Table, mem memory.Allocator) (*Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	schema := tbl.Schema()
	cols := make([]arrow.Array, 0, tbl.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i := 0; i < int(tbl.NumCols()); i++ {
		chunks := tbl.Column(i).Data().Chunks()
		var col arrow.Array
		switch len(chunks) {
		case 0:
			b := array.NewBuilder(mem, schema.Field(i).Type)
			col = b.NewArray()
			b.Release()
		case 1:
			col = chunks[0]
			col.Retain()
		default:
			var err error
			col, err = array.Concatenate(chunks, mem)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to concatenate column chunks").
					WithDetail("column", schema.Field(i).Name)
			}
		}
		cols = append(cols, col)
	}

	return New(name, array.NewRecord(schema, cols, tbl.NumRows())), nil
}

// Name returns the logical table name (e.g. "teams").
func (t *Table) Name() string { return t.name }

// Rename returns the same table under another name.
func (t *Table) Rename(name string) *Table {
	t.name = name
	return t
}

// Record returns the underlying Arrow record.
func (t *Table) Record() arrow.Record { return t.record }

// Schema returns the Arrow schema.
func (t *Table) Schema() *arrow.Schema { return t.record.Schema() }

// NumRows returns the number of rows.
func (t *Table) NumRows() int64 { return t.record.NumRows() }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return int(t.record.NumCols()) }

// Column returns column i.
func (t *Table) Column(i int) arrow.Array { return t.record.Column(i) }

// Field returns the schema field of column i.
func (t *Table) Field(i int) arrow.Field { return t.record.Schema().Field(i) }

// Kind returns the Kind of column i.
func (t *Table) Kind(i int) Kind { return KindOf(t.Field(i).Type) }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, t.NumCols())
	for i := range names {
		names[i] = t.record.ColumnName(i)
	}
	return names
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	idx := t.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return -1
	}
	return idx[0]
}

// Value returns the Go value at (row, col); nil when missing.
func (t *Table) Value(col, row int) interface{} {
	return ValueAt(t.Column(col), row)
}

// ColumnValues returns every value of the named column, or nil if it does not exist.
func (t *Table) ColumnValues(name string) []interface{} {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	arr := t.Column(i)
	out := make([]interface{}, arr.Len())
	for r := range out {
		out[r] = ValueAt(arr, r)
	}
	return out
}

// Describe summarizes the columns for logs and reports.
func (t *Table) Describe() models.Schema {
	s := models.Schema{Name: t.name, Fields: make([]models.Field, t.NumCols())}
	for i := range s.Fields {
		f := t.Field(i)
		s.Fields[i] = models.Field{Name: f.Name, Type: string(KindOf(f.Type)), Nullable: f.Nullable}
	}
	return s
}

// Release drops the table's reference to its record.
func (t *Table) Release() {
	if t.record != nil {
		t.record.Release()
		t.record = nil
	}
}

// ValueAt returns the Go value stored in arr at row i.
func ValueAt(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	default:
		return arr.GetOneForMarshal(i)
	}
}

package transform

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Transform reshapes a table. It owns its input; on error the input has
// already been released.
type Transform func(ctx context.Context, t *table.Table) (*table.Table, error)

// Chain applies transforms in order.
func Chain(transforms ...Transform) Transform {
	return func(ctx context.Context, t *table.Table) (*table.Table, error) {
		var err error
		for _, tr := range transforms {
			if t, err = tr(ctx, t); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
}

// RenameColumns renames columns according to mapping. Unmapped columns keep
// their names. Renaming two columns to the same name is an error.
//
// Example:
//
//	// Match an existing warehouse table
//	pipeline.WithTransform(transform.RenameColumns(map[string]string{
//	    "web_name": "player_name",
//	}))
func RenameColumns(mapping map[string]string) Transform {
	return func(ctx context.Context, t *table.Table) (*table.Table, error) {
		schema := t.Schema()
		fields := make([]arrow.Field, t.NumCols())
		seen := make(map[string]struct{}, t.NumCols())
		for i := range fields {
			f := schema.Field(i)
			if to, ok := mapping[f.Name]; ok {
				f.Name = to
			}
			if _, dup := seen[f.Name]; dup {
				t.Release()
				return nil, errors.Newf(errors.ErrorTypeValue, "rename produces duplicate column %q", f.Name)
			}
			seen[f.Name] = struct{}{}
			fields[i] = f
		}
		return rebuild(t, fields, allColumns(t)), nil
	}
}

// DropColumns removes the named columns if present.
func DropColumns(names ...string) Transform {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	return func(ctx context.Context, t *table.Table) (*table.Table, error) {
		schema := t.Schema()
		var fields []arrow.Field
		var cols []arrow.Array
		for i := 0; i < t.NumCols(); i++ {
			if _, ok := drop[schema.Field(i).Name]; ok {
				continue
			}
			fields = append(fields, schema.Field(i))
			cols = append(cols, t.Column(i))
		}
		if len(fields) == t.NumCols() {
			return t, nil
		}
		return rebuild(t, fields, cols), nil
	}
}

func allColumns(t *table.Table) []arrow.Array {
	cols := make([]arrow.Array, t.NumCols())
	for i := range cols {
		cols[i] = t.Column(i)
	}
	return cols
}

// rebuild makes a new table over cols and releases t.
func rebuild(t *table.Table, fields []arrow.Field, cols []arrow.Array) *table.Table {
	md := t.Schema().Metadata()
	rec := array.NewRecord(arrow.NewSchema(fields, &md), cols, t.NumRows())
	out := table.New(t.Name(), rec)
	t.Release()
	return out
}

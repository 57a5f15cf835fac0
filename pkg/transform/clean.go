// Package transform reshapes tables between extraction and loading.
//
// The central operation is Clean, which makes a table safe for a strictly
// relational sink: nested columns are dropped and boolean columns become int8.
// Every transform takes ownership of the table it is given and returns the
// table the caller must use from then on.
package transform

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/logger"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Result lists what Clean changed.
type Result struct {
	Dropped   []string `json:"dropped,omitempty"`
	Converted []string `json:"converted,omitempty"`
}

// Changed reports whether Clean altered the table's schema.
func (r Result) Changed() bool {
	return len(r.Dropped) > 0 || len(r.Converted) > 0
}

// Clean drops every nested column and re-encodes every boolean column as
// int8 (true → 1, false → 0, missing stays missing).
//
// Clean releases t. Row count and order are unchanged, and cleaning a clean
// table returns it as is.
func Clean(t *table.Table) *table.Table {
	out, _ := clean(memory.DefaultAllocator, t)
	return out
}

func clean(mem memory.Allocator, t *table.Table) (*table.Table, Result) {
	var res Result
	for i := 0; i < t.NumCols(); i++ {
		switch t.Kind(i) {
		case table.KindNested:
			res.Dropped = append(res.Dropped, t.Field(i).Name)
		case table.KindBoolean:
			res.Converted = append(res.Converted, t.Field(i).Name)
		}
	}
	if !res.Changed() {
		return t, res
	}

	schema := t.Schema()
	fields := make([]arrow.Field, 0, t.NumCols()-len(res.Dropped))
	cols := make([]arrow.Array, 0, cap(fields))
	var owned []arrow.Array
	defer func() {
		for _, c := range owned {
			c.Release()
		}
	}()

	for i := 0; i < t.NumCols(); i++ {
		f := schema.Field(i)
		switch t.Kind(i) {
		case table.KindNested:
			continue
		case table.KindBoolean:
			converted := boolToInt8(mem, t.Column(i).(*array.Boolean))
			owned = append(owned, converted)
			cols = append(cols, converted)
			fields = append(fields, arrow.Field{
				Name:     f.Name,
				Type:     arrow.PrimitiveTypes.Int8,
				Nullable: f.Nullable,
				Metadata: f.Metadata,
			})
		default:
			cols = append(cols, t.Column(i))
			fields = append(fields, f)
		}
	}

	md := schema.Metadata()
	rec := array.NewRecord(arrow.NewSchema(fields, &md), cols, t.NumRows())
	out := table.New(t.Name(), rec)
	t.Release()
	return out, res
}

func boolToInt8(mem memory.Allocator, in *array.Boolean) arrow.Array {
	b := array.NewInt8Builder(mem)
	defer b.Release()

	b.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		switch {
		case in.IsNull(i):
			b.AppendNull()
		case in.Value(i):
			b.Append(1)
		default:
			b.Append(0)
		}
	}
	return b.NewArray()
}

// Cleaner runs Clean and logs what it changed.
type Cleaner struct {
	logger *zap.Logger
	mem    memory.Allocator
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithAllocator sets the allocator used for converted columns.
func WithAllocator(mem memory.Allocator) CleanerOption {
	return func(c *Cleaner) { c.mem = mem }
}

// NewCleaner creates a Cleaner.
func NewCleaner(log *zap.Logger, opts ...CleanerOption) *Cleaner {
	if log == nil {
		log = logger.Get()
	}
	c := &Cleaner{
		logger: log.With(zap.String("component", "cleaner")),
		mem:    memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean cleans t (see Clean) and reports the columns it dropped or converted.
func (c *Cleaner) Clean(ctx context.Context, t *table.Table) (*table.Table, Result) {
	out, res := clean(c.mem, t)

	log := logger.WithContext(ctx, c.logger)
	if res.Changed() {
		log.Info("cleaned table",
			zap.String("name", out.Name()),
			zap.Strings("dropped", res.Dropped),
			zap.Strings("converted", res.Converted),
			zap.Int("columns", out.NumCols()),
			zap.Int64("rows", out.NumRows()))
	} else {
		log.Debug("table already clean", zap.String("name", out.Name()))
	}
	return out, res
}

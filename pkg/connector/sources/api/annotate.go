package api

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/pitchline/pkg/table"
)

// Stamp column names.
const (
	ColRequestID         = "request_id"
	ColRequestTime       = "request_time"
	ColResponseCode      = "response_code"
	ColResponseElapsedMS = "response_elapsed_ms"
)

// RequestTimeLayout formats request_time values, e.g. "2024-08-16 17:30:00.123+00:00".
const RequestTimeLayout = "2006-01-02 15:04:05.000-07:00"

// Annotate returns t with the stamp columns appended as constants. Upstream
// columns of the same name are replaced. t is released.
func Annotate(mem memory.Allocator, t *table.Table, stamp *Stamp) (*table.Table, error) {
	defer t.Release()

	if mem == nil {
		mem = memory.DefaultAllocator
	}
	n := int(t.NumRows())

	stampNames := map[string]struct{}{
		ColRequestID: {}, ColRequestTime: {}, ColResponseCode: {}, ColResponseElapsedMS: {},
	}

	fields := make([]arrow.Field, 0, t.NumCols()+4)
	cols := make([]arrow.Array, 0, t.NumCols()+4)
	for i := 0; i < t.NumCols(); i++ {
		if _, ok := stampNames[t.Field(i).Name]; ok {
			continue
		}
		fields = append(fields, t.Field(i))
		cols = append(cols, t.Column(i))
	}

	owned := make([]arrow.Array, 0, 4)
	defer func() {
		for _, c := range owned {
			c.Release()
		}
	}()

	ids := array.NewStringBuilder(mem)
	times := array.NewStringBuilder(mem)
	codes := array.NewInt64Builder(mem)
	elapsed := array.NewFloat64Builder(mem)
	defer ids.Release()
	defer times.Release()
	defer codes.Release()
	defer elapsed.Release()

	requestTime := stamp.RequestTime.UTC().Format(RequestTimeLayout)
	for i := 0; i < n; i++ {
		ids.Append(stamp.RequestID)
		times.Append(requestTime)
		codes.Append(int64(stamp.StatusCode))
		elapsed.Append(stamp.ElapsedMS())
	}
	owned = append(owned, ids.NewArray(), times.NewArray(), codes.NewArray(), elapsed.NewArray())

	fields = append(fields,
		arrow.Field{Name: ColRequestID, Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: ColRequestTime, Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: ColResponseCode, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		arrow.Field{Name: ColResponseElapsedMS, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	)
	cols = append(cols, owned...)

	return table.NewFromColumns(t.Name(), fields, cols, int64(n))
}

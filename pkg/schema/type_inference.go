// Package schema infers column types from raw records and builds Arrow-backed
// tables from them.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	pjson "github.com/ajitpratap0/pitchline/pkg/json"
	"github.com/ajitpratap0/pitchline/pkg/models"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// valueClass is the type family of a single raw value.
type valueClass uint8

const (
	classNull valueClass = iota
	classBoolean
	classInteger
	classFloat
	classString
	classTimestamp
	classList
	classObject
)

func (c valueClass) String() string {
	switch c {
	case classNull:
		return "null"
	case classBoolean:
		return "boolean"
	case classInteger:
		return "integer"
	case classFloat:
		return "float"
	case classString:
		return "string"
	case classTimestamp:
		return "timestamp"
	case classList:
		return "array"
	case classObject:
		return "object"
	default:
		return "unknown"
	}
}

// InferredType is the outcome of inferring one column.
type InferredType struct {
	Type     arrow.DataType `json:"-"`
	Nullable bool           `json:"nullable"`
	// Mixed is set when values of incompatible families were coerced to text.
	Mixed        bool           `json:"mixed"`
	Distribution map[string]int `json:"distribution,omitempty"`
}

// TypeInferenceEngine turns records into typed tables.
//
// Rules, applied per column across every record:
//   - any list value makes the column a list; its element type is inferred
//     from every element of every list
//   - otherwise any object value makes the column a struct over the union of
//     the objects' fields
//   - only booleans give boolean, only integers give int64, integers mixed
//     with floats give float64
//   - any other mix of scalar families gives text
//   - a column with no values at all gives the null type
//
// Values that do not fit a nested column's shape are stored as missing.
type TypeInferenceEngine struct {
	logger *zap.Logger
	mem    memory.Allocator
}

// Option configures a TypeInferenceEngine.
type Option func(*TypeInferenceEngine)

// WithAllocator sets the Arrow allocator used for built tables.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *TypeInferenceEngine) { e.mem = mem }
}

// NewTypeInferenceEngine creates a new type inference engine
func NewTypeInferenceEngine(logger *zap.Logger, opts ...Option) *TypeInferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &TypeInferenceEngine{
		logger: logger.With(zap.String("component", "type_inference")),
		mem:    memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FieldOrder returns the union of the records' field names in first-seen order.
func FieldOrder(rows []*models.Record) []string {
	seen := make(map[string]struct{})
	order := make([]string, 0)
	for _, r := range rows {
		if r == nil {
			continue
		}
		for _, f := range r.Fields() {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			order = append(order, f)
		}
	}
	return order
}

// InferSchema infers the Arrow schema of rows without building any arrays.
func (e *TypeInferenceEngine) InferSchema(rows []*models.Record) *arrow.Schema {
	names := FieldOrder(rows)
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		inferred := e.InferType(columnValues(rows, name))
		fields[i] = arrow.Field{Name: name, Type: inferred.Type, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Build stacks rows into a table named name.
func (e *TypeInferenceEngine) Build(name string, rows []*models.Record) (*table.Table, error) {
	names := FieldOrder(rows)
	if len(names) == 0 {
		if len(rows) == 0 {
			return table.Empty(name), nil
		}
		// Rows exist but carry no fields; keep the row count.
		return table.New(name, array.NewRecord(arrow.NewSchema(nil, nil), nil, int64(len(rows)))), nil
	}

	fields := make([]arrow.Field, len(names))
	cols := make([]arrow.Array, 0, len(names))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i, fieldName := range names {
		values := columnValues(rows, fieldName)
		inferred := e.InferType(values)
		if inferred.Mixed {
			e.logger.Debug("mixed value types coerced to text",
				zap.String("table", name),
				zap.String("column", fieldName),
				zap.Any("distribution", inferred.Distribution))
		}

		col, err := e.buildArray(inferred.Type, values)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to build column").
				WithDetail("table", name).
				WithDetail("column", fieldName)
		}
		fields[i] = arrow.Field{Name: fieldName, Type: inferred.Type, Nullable: true}
		cols = append(cols, col)
	}

	return table.NewFromColumns(name, fields, cols, int64(len(rows)))
}

// InferType infers the Arrow type of a column from its values.
func (e *TypeInferenceEngine) InferType(values []interface{}) *InferredType {
	inferred := &InferredType{Distribution: make(map[string]int)}

	var hasList, hasObject bool
	scalars := make(map[valueClass]int)
	for _, v := range values {
		c := classify(v)
		inferred.Distribution[c.String()]++
		switch c {
		case classNull:
			inferred.Nullable = true
		case classList:
			hasList = true
		case classObject:
			hasObject = true
		default:
			scalars[c]++
		}
	}

	switch {
	case hasList:
		var elems []interface{}
		for _, v := range values {
			if l, ok := v.([]interface{}); ok {
				elems = append(elems, l...)
			}
		}
		elemType := arrow.DataType(arrow.BinaryTypes.String)
		if len(elems) > 0 {
			if et := e.InferType(elems).Type; et.ID() != arrow.NULL {
				elemType = et
			}
		}
		inferred.Type = arrow.ListOf(elemType)
	case hasObject:
		inferred.Type = e.inferStruct(values)
	default:
		inferred.Type, inferred.Mixed = scalarType(scalars)
	}
	return inferred
}

func (e *TypeInferenceEngine) inferStruct(values []interface{}) arrow.DataType {
	objects := make([]*models.Record, 0, len(values))
	for _, v := range values {
		if r := asRecord(v); r != nil {
			objects = append(objects, r)
		}
	}

	names := FieldOrder(objects)
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: e.InferType(columnValues(objects, name)).Type, Nullable: true}
	}
	return arrow.StructOf(fields...)
}

func scalarType(classes map[valueClass]int) (arrow.DataType, bool) {
	switch len(classes) {
	case 0:
		return arrow.Null, false
	case 1:
		for c := range classes {
			switch c {
			case classBoolean:
				return arrow.FixedWidthTypes.Boolean, false
			case classInteger:
				return arrow.PrimitiveTypes.Int64, false
			case classFloat:
				return arrow.PrimitiveTypes.Float64, false
			case classTimestamp:
				return arrow.FixedWidthTypes.Timestamp_us, false
			}
		}
		return arrow.BinaryTypes.String, false
	case 2:
		if classes[classInteger] > 0 && classes[classFloat] > 0 {
			return arrow.PrimitiveTypes.Float64, false
		}
	}
	return arrow.BinaryTypes.String, true
}

// buildArray appends values to a builder of type dt.
func (e *TypeInferenceEngine) buildArray(dt arrow.DataType, values []interface{}) (arrow.Array, error) {
	b := array.NewBuilder(e.mem, dt)
	defer b.Release()

	b.Reserve(len(values))
	for _, v := range values {
		if err := appendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bb := b.(type) {
	case *array.NullBuilder:
		bb.AppendNull()
	case *array.BooleanBuilder:
		val, ok := v.(bool)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchema, "cannot store %T in a boolean column", v)
		}
		bb.Append(val)
	case *array.Int64Builder:
		val, ok := toInt64(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchema, "cannot store %v in an integer column", v)
		}
		bb.Append(val)
	case *array.Float64Builder:
		val, ok := toFloat64(v)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchema, "cannot store %v in a float column", v)
		}
		bb.Append(val)
	case *array.TimestampBuilder:
		ts, ok := v.(time.Time)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchema, "cannot store %T in a timestamp column", v)
		}
		bb.Append(arrow.Timestamp(ts.UnixMicro()))
	case *array.StringBuilder:
		s, ok := toText(v)
		if !ok {
			bb.AppendNull()
			return nil
		}
		bb.Append(s)
	case *array.ListBuilder:
		l, ok := v.([]interface{})
		if !ok {
			bb.AppendNull()
			return nil
		}
		bb.Append(true)
		vb := bb.ValueBuilder()
		for _, item := range l {
			if err := appendValue(vb, item); err != nil {
				return err
			}
		}
	case *array.StructBuilder:
		r := asRecord(v)
		if r == nil {
			bb.AppendNull()
			return nil
		}
		bb.Append(true)
		st := bb.Type().(*arrow.StructType)
		for i := 0; i < bb.NumField(); i++ {
			fv, _ := r.Get(st.Field(i).Name)
			if err := appendValue(bb.FieldBuilder(i), fv); err != nil {
				return err
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeInternal, "no builder support for %s", b.Type())
	}
	return nil
}

func classify(v interface{}) valueClass {
	switch t := v.(type) {
	case nil:
		return classNull
	case bool:
		return classBoolean
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return classInteger
	case uint, uint64:
		if _, ok := toInt64(t); ok {
			return classInteger
		}
		return classFloat
	case float32, float64:
		return classFloat
	case pjson.Number:
		if _, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return classInteger
		}
		return classFloat
	case string:
		return classString
	case time.Time:
		return classTimestamp
	case []interface{}:
		return classList
	case *models.Record, map[string]interface{}:
		return classObject
	default:
		return classString
	}
}

func asRecord(v interface{}) *models.Record {
	switch t := v.(type) {
	case *models.Record:
		return t
	case map[string]interface{}:
		// Plain maps carry no order; sort keys so results are stable.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := models.NewRecord(len(keys))
		for _, k := range keys {
			r.Set(k, t[k])
		}
		return r
	default:
		return nil
	}
}

func columnValues(rows []*models.Record, name string) []interface{} {
	values := make([]interface{}, len(rows))
	for i, r := range rows {
		if r == nil {
			continue
		}
		values[i], _ = r.Get(name)
	}
	return values
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case pjson.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case pjson.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		i, ok := toInt64(v)
		if ok {
			return float64(i), true
		}
		if u, isUint := v.(uint64); isUint {
			return float64(u), true
		}
		if u, isUint := v.(uint); isUint {
			return float64(u), true
		}
		return 0, false
	}
}

func toText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case pjson.Number:
		return string(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	default:
		if i, ok := toInt64(v); ok {
			return strconv.FormatInt(i, 10), true
		}
		if _, nested := v.([]interface{}); nested {
			return "", false
		}
		if asRecord(v) != nil {
			return "", false
		}
		return fmt.Sprint(v), true
	}
}

// Package models provides the raw data models pitchline reads from upstream sources.
//
// A Record is one object from an API response or one row of a file. Field order
// is the order in which fields were first seen, so tables built from records keep
// the column order the upstream produced.
package models

// Record is an ordered mapping from field name to a raw value.
//
// Values are one of: nil, bool, string, json.Number, []interface{} (list) or
// *Record (nested object).
type Record struct {
	fields []string
	data   map[string]interface{}
}

// NewRecord creates an empty record with room for n fields.
func NewRecord(n int) *Record {
	return &Record{
		fields: make([]string, 0, n),
		data:   make(map[string]interface{}, n),
	}
}

// RecordFrom builds a record from alternating key/value pairs, mostly for tests.
func RecordFrom(kv ...interface{}) *Record {
	r := NewRecord(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// Set stores value under key. A new key is appended to the field order; an
// existing key keeps its position.
func (r *Record) Set(key string, value interface{}) {
	if _, ok := r.data[key]; !ok {
		r.fields = append(r.fields, key)
	}
	r.data[key] = value
}

// Get returns the value for key and whether the key was present.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.data[key]
	return v, ok
}

// Fields returns the field names in first-seen order.
func (r *Record) Fields() []string {
	return r.fields
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Map converts the record, and any nested records, to plain maps.
func (r *Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for _, k := range r.fields {
		out[k] = Plain(r.data[k])
	}
	return out
}

// Plain converts nested records inside v to plain maps so the value can be
// handed to an encoder.
func Plain(v interface{}) interface{} {
	switch t := v.(type) {
	case *Record:
		return t.Map()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	default:
		return v
	}
}

// Schema describes the columns of a table in a form that can be logged or
// written to a report.
type Schema struct {
	// Name identifies the schema (e.g. table name)
	Name string `json:"name" yaml:"name"`

	// Fields defines the structure of the data
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field represents a single column in the schema.
type Field struct {
	// Name is the column identifier
	Name string `json:"name" yaml:"name"`

	// Type is the column kind (text, integer, small_integer, boolean, float, nested)
	Type string `json:"type" yaml:"type"`

	// Nullable reports whether the column may hold missing values
	Nullable bool `json:"nullable" yaml:"nullable"`
}

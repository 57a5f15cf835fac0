// Package sqldb renders CREATE TABLE statements for tables and loads tables
// into relational databases through database/sql.
package sqldb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/pitchline/pkg/errors"
)

// Dialect captures the differences between SQL databases that matter here.
type Dialect interface {
	// Name is the configuration name, e.g. "postgres".
	Name() string
	// DriverName is the database/sql driver, or "" if none is linked in.
	DriverName() string
	// Identifier normalizes an unquoted name, e.g. upper-casing for Oracle.
	Identifier(name string) string
	// Quote normalizes and quotes an identifier.
	Quote(name string) string
	// ColumnType maps an Arrow column to a column type. col supplies the data
	// for width-dependent types.
	ColumnType(field arrow.Field, col arrow.Array) string
	// Placeholder is the bind marker for the i-th (1-based) argument.
	Placeholder(i int) string
	// TableExistsQuery returns a query yielding a single count.
	TableExistsQuery(name string) (string, []interface{})
	// TruncateStatement empties a table.
	TruncateStatement(name string) string
	// UpsertStatement inserts or updates one row keyed by keys.
	UpsertStatement(name string, columns, keys []string) string
}

var dialects = map[string]Dialect{}

func register(d Dialect) { dialects[d.Name()] = d }

func init() {
	register(oracle{})
	register(postgres{})
	register(mysql{})
	register(sqlite{})
	register(snowflake{})
}

// DialectFor returns the named dialect.
func DialectFor(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown SQL dialect %q", name).
			WithDetail("known", Dialects())
	}
	return d, nil
}

// Oracle returns the Oracle dialect used by GenerateDDL.
func Oracle() Dialect { return oracle{} }

// Dialects lists the known dialect names, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func quoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// maxTextBytes returns the longest string in col, in bytes.
func maxTextBytes(col arrow.Array) int {
	longest := 0
	switch a := col.(type) {
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			if a.IsValid(i) && len(a.Value(i)) > longest {
				longest = len(a.Value(i))
			}
		}
	case *array.LargeString:
		for i := 0; i < a.Len(); i++ {
			if a.IsValid(i) && len(a.Value(i)) > longest {
				longest = len(a.Value(i))
			}
		}
	}
	return longest
}

// Oracle text columns stay VARCHAR2 up to this many bytes.
const (
	oracleMinVarchar = 255
	oracleMaxVarchar = 4000
)

// varcharWidth is twice the longest value, at least oracleMinVarchar, or 0
// when the column needs a CLOB.
func varcharWidth(col arrow.Array) int {
	if col == nil {
		return oracleMinVarchar
	}
	n := 2 * maxTextBytes(col)
	if n < oracleMinVarchar {
		n = oracleMinVarchar
	}
	if n > oracleMaxVarchar {
		return 0
	}
	return n
}

func hasTimeZone(dt arrow.DataType) bool {
	ts, ok := dt.(*arrow.TimestampType)
	return ok && ts.TimeZone != ""
}

type oracle struct{}

func (oracle) Name() string       { return "oracle" }
func (oracle) DriverName() string { return "" }

func (oracle) Identifier(name string) string { return strings.ToUpper(name) }

func (d oracle) Quote(name string) string { return quoteWith(`"`, d.Identifier(name)) }

func (oracle) ColumnType(field arrow.Field, col arrow.Array) string {
	switch field.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		if n := varcharWidth(col); n > 0 {
			return fmt.Sprintf("VARCHAR2(%d)", n)
		}
		return "CLOB"
	case arrow.INT64, arrow.UINT32:
		return "NUMBER(19)"
	case arrow.UINT64:
		return "NUMBER(20)"
	case arrow.INT32, arrow.UINT16:
		return "NUMBER(10)"
	case arrow.INT16, arrow.UINT8:
		return "NUMBER(5)"
	case arrow.INT8:
		return "NUMBER(3)"
	case arrow.BOOL:
		return "NUMBER(1)"
	case arrow.FLOAT64:
		return "BINARY_DOUBLE"
	case arrow.FLOAT32, arrow.FLOAT16:
		return "BINARY_FLOAT"
	case arrow.TIMESTAMP:
		if hasTimeZone(field.Type) {
			return "TIMESTAMP WITH TIME ZONE"
		}
		return "TIMESTAMP"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY,
		arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.STRUCT, arrow.MAP:
		return "BLOB"
	default:
		return "CLOB"
	}
}

func (oracle) Placeholder(i int) string { return fmt.Sprintf(":%d", i) }

func (d oracle) TableExistsQuery(name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM user_tables WHERE table_name = :1", []interface{}{d.Identifier(name)}
}

func (d oracle) TruncateStatement(name string) string { return "TRUNCATE TABLE " + d.Quote(name) }

func (d oracle) UpsertStatement(name string, columns, keys []string) string {
	return mergeStatement(d, name, columns, keys, " FROM dual")
}

type postgres struct{}

func (postgres) Name() string       { return "postgres" }
func (postgres) DriverName() string { return "pgx" }

func (postgres) Identifier(name string) string { return name }

func (d postgres) Quote(name string) string { return quoteWith(`"`, name) }

func (postgres) ColumnType(field arrow.Field, _ arrow.Array) string {
	switch field.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "TEXT"
	case arrow.INT64, arrow.UINT32, arrow.UINT64:
		return "BIGINT"
	case arrow.INT32, arrow.UINT16:
		return "INTEGER"
	case arrow.INT16, arrow.INT8, arrow.UINT8:
		return "SMALLINT"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.FLOAT64:
		return "DOUBLE PRECISION"
	case arrow.FLOAT32, arrow.FLOAT16:
		return "REAL"
	case arrow.TIMESTAMP:
		if hasTimeZone(field.Type) {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "BYTEA"
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.STRUCT, arrow.MAP:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (postgres) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (postgres) TableExistsQuery(name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		[]interface{}{name}
}

func (d postgres) TruncateStatement(name string) string { return "TRUNCATE TABLE " + d.Quote(name) }

func (d postgres) UpsertStatement(name string, columns, keys []string) string {
	return onConflictStatement(d, name, columns, keys)
}

type sqlite struct{}

func (sqlite) Name() string       { return "sqlite" }
func (sqlite) DriverName() string { return "sqlite" }

func (sqlite) Identifier(name string) string { return name }

func (sqlite) Quote(name string) string { return quoteWith(`"`, name) }

func (sqlite) ColumnType(field arrow.Field, _ arrow.Array) string {
	switch field.Type.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64, arrow.BOOL:
		return "INTEGER"
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return "REAL"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (sqlite) Placeholder(int) string { return "?" }

func (sqlite) TableExistsQuery(name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []interface{}{name}
}

func (d sqlite) TruncateStatement(name string) string { return "DELETE FROM " + d.Quote(name) }

func (d sqlite) UpsertStatement(name string, columns, keys []string) string {
	return onConflictStatement(d, name, columns, keys)
}

type mysql struct{}

func (mysql) Name() string       { return "mysql" }
func (mysql) DriverName() string { return "mysql" }

func (mysql) Identifier(name string) string { return name }

func (mysql) Quote(name string) string { return quoteWith("`", name) }

func (mysql) ColumnType(field arrow.Field, _ arrow.Array) string {
	switch field.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "LONGTEXT"
	case arrow.INT64:
		return "BIGINT"
	case arrow.UINT64:
		return "BIGINT UNSIGNED"
	case arrow.INT32:
		return "INT"
	case arrow.UINT32:
		return "INT UNSIGNED"
	case arrow.INT16:
		return "SMALLINT"
	case arrow.UINT16:
		return "SMALLINT UNSIGNED"
	case arrow.INT8:
		return "TINYINT"
	case arrow.UINT8:
		return "TINYINT UNSIGNED"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.FLOAT64:
		return "DOUBLE"
	case arrow.FLOAT32, arrow.FLOAT16:
		return "FLOAT"
	case arrow.TIMESTAMP:
		return "DATETIME(6)"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "LONGBLOB"
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.STRUCT, arrow.MAP:
		return "JSON"
	default:
		return "LONGTEXT"
	}
}

func (mysql) Placeholder(int) string { return "?" }

func (mysql) TableExistsQuery(name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		[]interface{}{name}
}

func (d mysql) TruncateStatement(name string) string { return "TRUNCATE TABLE " + d.Quote(name) }

func (d mysql) UpsertStatement(name string, columns, keys []string) string {
	var b strings.Builder
	b.WriteString(insertStatement(d, name, columns))
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	updates := nonKeys(columns, keys)
	if len(updates) == 0 {
		updates = keys[:1]
	}
	for i, c := range updates {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = VALUES(%s)", d.Quote(c), d.Quote(c))
	}
	return b.String()
}

type snowflake struct{}

func (snowflake) Name() string       { return "snowflake" }
func (snowflake) DriverName() string { return "snowflake" }

func (snowflake) Identifier(name string) string { return strings.ToUpper(name) }

func (d snowflake) Quote(name string) string { return quoteWith(`"`, d.Identifier(name)) }

func (snowflake) ColumnType(field arrow.Field, _ arrow.Array) string {
	switch field.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "VARCHAR"
	case arrow.INT64, arrow.UINT32, arrow.UINT64:
		return "NUMBER(19,0)"
	case arrow.INT32, arrow.UINT16:
		return "NUMBER(10,0)"
	case arrow.INT16, arrow.UINT8:
		return "NUMBER(5,0)"
	case arrow.INT8:
		return "NUMBER(3,0)"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return "FLOAT"
	case arrow.TIMESTAMP:
		if hasTimeZone(field.Type) {
			return "TIMESTAMP_TZ"
		}
		return "TIMESTAMP_NTZ"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return "BINARY"
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.STRUCT, arrow.MAP:
		return "VARIANT"
	default:
		return "VARCHAR"
	}
}

func (snowflake) Placeholder(int) string { return "?" }

func (d snowflake) TableExistsQuery(name string) (string, []interface{}) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = ?",
		[]interface{}{d.Identifier(name)}
}

func (d snowflake) TruncateStatement(name string) string { return "TRUNCATE TABLE " + d.Quote(name) }

func (d snowflake) UpsertStatement(name string, columns, keys []string) string {
	return mergeStatement(d, name, columns, keys, "")
}

func insertStatement(d Dialect, name string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(name), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func onConflictStatement(d Dialect, name string, columns, keys []string) string {
	quotedKeys := make([]string, len(keys))
	for i, k := range keys {
		quotedKeys[i] = d.Quote(k)
	}

	var b strings.Builder
	b.WriteString(insertStatement(d, name, columns))
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO ", strings.Join(quotedKeys, ", "))
	updates := nonKeys(columns, keys)
	if len(updates) == 0 {
		b.WriteString("NOTHING")
		return b.String()
	}
	b.WriteString("UPDATE SET ")
	for i, c := range updates {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = excluded.%s", d.Quote(c), d.Quote(c))
	}
	return b.String()
}

func mergeStatement(d Dialect, name string, columns, keys []string, from string) string {
	selects := make([]string, len(columns))
	inserts := make([]string, len(columns))
	values := make([]string, len(columns))
	for i, c := range columns {
		selects[i] = fmt.Sprintf("%s AS %s", d.Placeholder(i+1), d.Quote(c))
		inserts[i] = d.Quote(c)
		values[i] = "s." + d.Quote(c)
	}
	on := make([]string, len(keys))
	for i, k := range keys {
		on[i] = fmt.Sprintf("t.%s = s.%s", d.Quote(k), d.Quote(k))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE INTO %s t USING (SELECT %s%s) s ON (%s)",
		d.Quote(name), strings.Join(selects, ", "), from, strings.Join(on, " AND "))
	if updates := nonKeys(columns, keys); len(updates) > 0 {
		sets := make([]string, len(updates))
		for i, c := range updates {
			sets[i] = fmt.Sprintf("t.%s = s.%s", d.Quote(c), d.Quote(c))
		}
		fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(inserts, ", "), strings.Join(values, ", "))
	return b.String()
}

func nonKeys(columns, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}

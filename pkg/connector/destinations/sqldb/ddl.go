package sqldb

import (
	"strings"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

// GenerateDDL renders an Oracle CREATE TABLE statement for t. It does not
// touch a database. The same table and name always give the same text.
func GenerateDDL(t *table.Table, tableName string) (string, error) {
	return CreateTableStatement(oracle{}, t, tableName)
}

// CreateTableStatement renders a CREATE TABLE statement for t in dialect d,
// one column per table column in table order. primaryKey, if given, adds a
// PRIMARY KEY clause.
//
// An empty name or a table without columns is a value error.
func CreateTableStatement(d Dialect, t *table.Table, tableName string, primaryKey ...string) (string, error) {
	if strings.TrimSpace(tableName) == "" {
		return "", errors.New(errors.ErrorTypeValue, "table name must not be empty")
	}
	if t == nil || t.NumCols() == 0 {
		return "", errors.Newf(errors.ErrorTypeValue, "table %s has no columns", tableName).
			WithDetail("dialect", d.Name())
	}
	for _, k := range primaryKey {
		if t.ColumnIndex(k) < 0 {
			return "", errors.Newf(errors.ErrorTypeValue, "primary key column %s not in table %s", k, tableName)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(d.Quote(tableName))
	b.WriteString(" (\n")
	for i := 0; i < t.NumCols(); i++ {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		b.WriteString(d.Quote(t.Field(i).Name))
		b.WriteString(" ")
		b.WriteString(d.ColumnType(t.Field(i), t.Column(i)))
	}
	if len(primaryKey) > 0 {
		quoted := make([]string, len(primaryKey))
		for i, k := range primaryKey {
			quoted[i] = d.Quote(k)
		}
		b.WriteString(",\n    PRIMARY KEY (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}
	b.WriteString("\n)")
	return b.String(), nil
}

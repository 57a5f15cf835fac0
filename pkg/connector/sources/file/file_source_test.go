package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/registry"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

func writeFile(t *testing.T, name, body string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func collect(t *testing.T, src core.TableSource) []core.NamedTable {
	var out []core.NamedTable
	for nt, err := range src.Generate(context.Background()) {
		require.NoError(t, err)
		out = append(out, nt)
	}
	return out
}

func TestReadJSON(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	path := writeFile(t, "Teams.json", `[{"id":1,"active":true,"tags":["a"]},{"id":2,"active":false,"tags":[]}]`)
	src, err := NewSource(path, WithAllocator(mem))
	require.NoError(t, err)

	tables := collect(t, src)
	require.Len(t, tables, 1)
	tbl := tables[0].Table
	defer tbl.Release()

	assert.Equal(t, "Teams", tables[0].Name)
	assert.Equal(t, []string{"id", "active", "tags"}, tbl.ColumnNames())
	assert.Equal(t, table.KindBoolean, tbl.Kind(1))
	assert.Equal(t, table.KindNested, tbl.Kind(2))
}

func TestReadCSVInfersTypes(t *testing.T) {
	path := writeFile(t, "players.csv", "id,name,active,price\n1,Raya,true,5.5\n2,Saka,FALSE,\n3,Rice\n")
	src, err := NewSource(path, WithTableName("elements"))
	require.NoError(t, err)

	tables := collect(t, src)
	require.Len(t, tables, 1)
	tbl := tables[0].Table
	defer tbl.Release()

	assert.Equal(t, "elements", tbl.Name())
	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, table.KindInteger, tbl.Kind(0))
	assert.Equal(t, table.KindText, tbl.Kind(1))
	assert.Equal(t, table.KindBoolean, tbl.Kind(2))
	assert.Equal(t, table.KindFloat, tbl.Kind(3))
	assert.Equal(t, []interface{}{true, false, nil}, tbl.ColumnValues("active"))
}

func TestEmptyCSV(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	src, err := NewSource(path)
	require.NoError(t, err)

	tables := collect(t, src)
	require.Len(t, tables, 1)
	assert.Equal(t, int64(0), tables[0].Table.NumRows())
	assert.Equal(t, 0, tables[0].Table.NumCols())
	tables[0].Table.Release()
}

func TestErrors(t *testing.T) {
	_, err := NewSource("data.xlsx")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "export the sheet to csv")

	_, err = NewSource("data.parquet")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "unsupported file format")

	src, err := NewSource(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	for _, err := range src.Generate(context.Background()) {
		assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	}

	bad := writeFile(t, "bad.json", `{"not": "rows"}`)
	src, err = NewSource(bad)
	require.NoError(t, err)
	for _, err := range src.Generate(context.Background()) {
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	}
}

func TestRegisteredAsFile(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Type = "file"
	cfg.Source.Path = writeFile(t, "teams.json", `[]`)

	src, err := registry.CreateSource("file", cfg)
	require.NoError(t, err)
	assert.Equal(t, "file", src.Name())
}

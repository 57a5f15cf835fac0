package transform

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
)

func TestRenameColumns(t *testing.T) {
	in := build(t, memory.DefaultAllocator, "elements", `[{"id":1,"web_name":"Saka"}]`)

	out, err := RenameColumns(map[string]string{"web_name": "player_name"})(context.Background(), in)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"id", "player_name"}, out.ColumnNames())
	assert.Equal(t, []interface{}{"Saka"}, out.ColumnValues("player_name"))
}

func TestRenameColumnsRejectsDuplicates(t *testing.T) {
	in := build(t, memory.DefaultAllocator, "elements", `[{"id":1,"code":2}]`)

	_, err := RenameColumns(map[string]string{"code": "id"})(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
}

func TestChainDropThenRename(t *testing.T) {
	in := build(t, memory.DefaultAllocator, "fixtures", `[{"id":1,"finished":true,"event":3}]`)

	chain := Chain(
		DropColumns("event", "not_there"),
		RenameColumns(map[string]string{"finished": "is_finished"}),
	)
	out, err := chain(context.Background(), in)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, "fixtures", out.Name())
	assert.Equal(t, []string{"id", "is_finished"}, out.ColumnNames())
	assert.Equal(t, int64(1), out.NumRows())
}

func TestChainStopsAtFirstError(t *testing.T) {
	in := build(t, memory.DefaultAllocator, "elements", `[{"id":1,"code":2}]`)

	called := false
	chain := Chain(
		RenameColumns(map[string]string{"code": "id"}),
		func(ctx context.Context, tbl *table.Table) (*table.Table, error) {
			called = true
			return tbl, nil
		},
	)
	_, err := chain(context.Background(), in)
	require.Error(t, err)
	assert.False(t, called)
}

func TestDropColumnsNoMatchKeepsTable(t *testing.T) {
	in := build(t, memory.DefaultAllocator, "teams", `[{"id":1}]`)

	out, err := DropColumns("missing")(context.Background(), in)
	require.NoError(t, err)
	defer out.Release()
	assert.Same(t, in, out)
}

package pipeline

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/columnar"
	"github.com/ajitpratap0/pitchline/pkg/connector/destinations/sqldb"
	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/table"
	"github.com/ajitpratap0/pitchline/pkg/transform"
)

// fixtures builds a 3-row table with an int64, a bool and a list column.
func fixtures(t *testing.T, name string) *table.Table {
	mem := memory.DefaultAllocator

	ids := array.NewInt64Builder(mem)
	ids.AppendValues([]int64{1, 2, 3}, nil)
	idArr := ids.NewArray()
	ids.Release()

	finished := array.NewBooleanBuilder(mem)
	finished.AppendValues([]bool{true, false, true}, nil)
	finishedArr := finished.NewArray()
	finished.Release()

	stats := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	values := stats.ValueBuilder().(*array.Int64Builder)
	for i := 0; i < 3; i++ {
		stats.Append(true)
		values.AppendValues([]int64{int64(i), int64(i + 1)}, nil)
	}
	statsArr := stats.NewArray()
	stats.Release()

	fields := []arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "finished", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "stats", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64), Nullable: true},
	}
	cols := []arrow.Array{idArr, finishedArr, statsArr}
	tbl, err := table.NewFromColumns(name, fields, cols, 3)
	require.NoError(t, err)
	for _, c := range cols {
		c.Release()
	}
	return tbl
}

type step struct {
	table *table.Table
	err   error
}

// fakeSource yields prepared steps. Tables not handed out are released.
type fakeSource struct {
	steps []step
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Generate(ctx context.Context) iter.Seq2[core.NamedTable, error] {
	return func(yield func(core.NamedTable, error) bool) {
		for i, st := range s.steps {
			if st.err != nil {
				yield(core.NamedTable{}, st.err)
				return
			}
			if !yield(core.NamedTable{Name: st.table.Name(), Table: st.table}, nil) {
				for _, rest := range s.steps[i+1:] {
					if rest.table != nil {
						rest.table.Release()
					}
				}
				return
			}
		}
	}
}

type fakeUploader struct {
	keys   []string
	closed bool
}

func (u *fakeUploader) Upload(_ context.Context, localPath, key string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	return "s3://bucket/" + key, nil
}

func (u *fakeUploader) Close() error {
	u.closed = true
	return nil
}

type failingSink struct{}

func (failingSink) Write(context.Context, *table.Table, string) error {
	return errors.New(errors.ErrorTypeIO, "disk full")
}

func (failingSink) Extension() string { return "parquet" }

func TestRunWritesCleanFilesAndDDL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}, {table: fixtures(t, "results")}}}

	p, err := New(src,
		WithOutputDir(dir),
		WithPrefix("FPL"),
		WithDDL(sqldb.Oracle()),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)
	assert.Equal(t, "fake", report.Source)
	assert.Equal(t, int64(6), report.TotalRows())

	tr, ok := report.Table("fixtures")
	require.True(t, ok)
	assert.Equal(t, int64(3), tr.Rows)
	assert.Equal(t, 2, tr.Columns)
	assert.Equal(t, []string{"stats"}, tr.Dropped)
	assert.Equal(t, []string{"finished"}, tr.Converted)
	assert.Equal(t, []string{
		filepath.Join(dir, "fpl_fixtures.parquet"),
		filepath.Join(dir, "fpl_fixtures.sql"),
	}, tr.Files)

	got, err := columnar.Read(ctx, filepath.Join(dir, "fpl_fixtures.parquet"), nil)
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []string{"id", "finished"}, got.ColumnNames())
	assert.Equal(t, []interface{}{int8(1), int8(0), int8(1)}, got.ColumnValues("finished"))

	ddl, err := os.ReadFile(filepath.Join(dir, "fpl_fixtures.sql"))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"FPL_FIXTURES\" (\n    \"ID\" NUMBER(19),\n    \"FINISHED\" NUMBER(3)\n);\n", string(ddl))

	_, ok = report.Table("missing")
	assert.False(t, ok)
}

func TestRunLoadsDatabase(t *testing.T) {
	ctx := context.Background()
	loader, err := sqldb.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	uploader := &fakeUploader{}

	for run := 0; run < 2; run++ {
		src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}}}
		p, err := New(src,
			WithOutputDir(t.TempDir()),
			WithPrefix("fpl"),
			WithDDL(sqldb.Oracle()),
			WithUploader(uploader),
			WithLoader(loader, config.ModeRebuild),
		)
		require.NoError(t, err)

		report, err := p.Run(ctx)
		require.NoError(t, err)
		tr, _ := report.Table("fixtures")
		assert.Equal(t, "FPL_FIXTURES", tr.DatabaseTable)
		assert.Equal(t, int64(3), tr.RowsLoaded)
		assert.Equal(t, []string{"s3://bucket/fpl_fixtures.parquet", "s3://bucket/fpl_fixtures.sql"}, tr.Uploaded)
	}

	n, err := loader.CountRows(ctx, "FPL_FIXTURES")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, uploader.keys, 4)

	p, err := New(&fakeSource{}, WithUploader(uploader), WithLoader(loader, config.ModeReload))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, uploader.closed)
}

func TestRunAppliesTransformsAfterCleaning(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}}}

	p, err := New(src,
		WithOutputDir(dir),
		WithPrefix("fpl"),
		WithCleaner(transform.NewCleaner(zaptest.NewLogger(t))),
		WithTransform(transform.DropColumns("id")),
		WithTransform(transform.RenameColumns(map[string]string{"finished": "is_finished"})),
	)
	require.NoError(t, err)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	tr, ok := report.Table("fixtures")
	require.True(t, ok)
	assert.Equal(t, 1, tr.Columns)
	assert.Equal(t, []string{"finished"}, tr.Converted)

	got, err := columnar.Read(ctx, filepath.Join(dir, "fpl_fixtures.parquet"), nil)
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []string{"is_finished"}, got.ColumnNames())
	assert.Equal(t, []interface{}{int8(1), int8(0), int8(1)}, got.ColumnValues("is_finished"))
}

func TestRunSkipsTablesTransformedToNoColumns(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}}}
	p, err := New(src, WithOutputDir(dir), WithTransform(transform.DropColumns("id", "finished")))
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tables, 1)
	assert.True(t, report.Tables[0].Skipped)
	assert.NoFileExists(t, filepath.Join(dir, "fixtures.parquet"))
}

func TestRunReturnsTransformError(t *testing.T) {
	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}}}
	p, err := New(src,
		WithOutputDir(t.TempDir()),
		WithTransform(transform.RenameColumns(map[string]string{"finished": "id"})),
	)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
	assert.Empty(t, report.Tables)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "fixtures", e.Details["table"])
}

func TestRunSkipsColumnlessTables(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{steps: []step{{table: table.Empty("events")}, {table: fixtures(t, "fixtures")}}}
	p, err := New(src, WithOutputDir(dir), WithPrefix("fpl"))
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)
	assert.True(t, report.Tables[0].Skipped)
	assert.Empty(t, report.Tables[0].Files)
	assert.NoFileExists(t, filepath.Join(dir, "fpl_events.parquet"))
	assert.FileExists(t, filepath.Join(dir, "fpl_fixtures.parquet"))
	assert.NoFileExists(t, filepath.Join(dir, "fpl_fixtures.sql"))
}

func TestRunStopsAtSourceError(t *testing.T) {
	upstream := errors.New(errors.ErrorTypeTransport, "503 from upstream")
	src := &fakeSource{steps: []step{
		{table: fixtures(t, "fixtures")},
		{err: upstream},
		{table: fixtures(t, "never")},
	}}
	p, err := New(src, WithOutputDir(t.TempDir()))
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	assert.Same(t, upstream, err)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, "fixtures", report.Tables[0].Name)
	src.steps[2].table.Release()
}

func TestRunReturnsStageErrorWithTable(t *testing.T) {
	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}, {table: fixtures(t, "later")}}}
	p, err := New(src, WithOutputDir(t.TempDir()), WithSink(failingSink{}))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "fixtures", e.Details["table"])
	assert.Equal(t, "disk full", e.Message)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{steps: []step{{table: fixtures(t, "fixtures")}}}
	p, err := New(src, WithOutputDir(t.TempDir()))
	require.NoError(t, err)

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	loader, err := sqldb.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	defer loader.Close()
	_, err = New(&fakeSource{}, WithLoader(loader, "append"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNames(t *testing.T) {
	p, err := New(&fakeSource{}, WithPrefix("FPL"))
	require.NoError(t, err)
	assert.Equal(t, "fpl_teams", p.BaseName("Teams"))
	assert.Equal(t, "FPL_TEAMS", p.DatabaseName("teams"))

	p, err = New(&fakeSource{})
	require.NoError(t, err)
	assert.Equal(t, "teams", p.BaseName("teams"))
}

func TestFromConfigRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = ""
	_, err := FromConfig(context.Background(), cfg, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
